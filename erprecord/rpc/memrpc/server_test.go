package memrpc

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partners = `
version: "16.0"
models:
  - model: res.partner
    columns:
      - name: name
      - name: credit
      - name: active
      - {name: parent_id, target: res.partner}
      - {name: child_ids, target: res.partner, many: true}
      - {name: category_ids, target: res.partner.category, many: true}
    rows:
      - {id: 10, name: Azure Interior, credit: 1250.5, active: true, child_ids: [11, 12], category_ids: [1]}
      - {id: 11, name: Brandon Freeman, credit: 0, active: true, parent_id: 10}
      - {id: 12, name: Colleen Diaz, credit: 80, active: false, parent_id: 10}
      - {id: 13, name: Deco Addict, active: true, category_ids: [1, 2]}
  - model: res.partner.category
    columns:
      - name: name
    rows:
      - {id: 1, name: Vip}
      - {id: 2, name: Wholesale}
`

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	srv, err := Load(strings.NewReader(partners), opts...)
	require.NoError(t, err)
	return srv
}

func execute(t *testing.T, srv *Server, model, method string, args ...any) any {
	t.Helper()
	res, err := srv.Execute(context.Background(), model, method, args...)
	require.NoError(t, err)
	return res
}

func ids(t *testing.T, res any) []int64 {
	t.Helper()
	list, ok := res.([]any)
	require.True(t, ok, "result %T is not a list", res)
	out := make([]int64, len(list))
	for i, v := range list {
		var id any = v
		if row, ok := v.(map[string]any); ok {
			id = row["id"]
		}
		n, err := id.(json.Number).Int64()
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func TestLoad(t *testing.T) {
	srv := newServer(t)
	assert.Equal(t, "16.0", srv.Version())

	row, ok := srv.Row("res.partner", 11)
	require.True(t, ok)
	assert.Equal(t, "Brandon Freeman", row["name"])

	// seeded ids advance the sequence
	id := execute(t, srv, "res.partner", "create", map[string]any{"name": "New"})
	assert.Equal(t, json.Number("14"), id)
	assert.Zero(t, srv.CallCount("search_read"), "seeding is not logged")

	srv = newServer(t, WithVersion("12.0"))
	assert.Equal(t, "12.0", srv.Version())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("models: [[["))
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`
models:
  - model: res.country
    columns: [{name: name}]
    rows:
      - {id: 1, name: Belgium}
      - {id: 1, name: France}
`))
	assert.ErrorContains(t, err, "duplicate id 1")

	_, err = Load(strings.NewReader(`
models:
  - model: res.country
    columns: [{name: name}]
    rows:
      - {id: 1, capital: Brussels}
`))
	assert.ErrorContains(t, err, `invalid field "capital"`)
}

func TestSearchRead(t *testing.T) {
	srv := newServer(t)

	res := execute(t, srv, "res.partner", "search_read",
		[]any{[]any{"parent_id", "=", 10}}, []any{"name", "parent_id", "child_ids"})
	want := []any{
		map[string]any{"id": json.Number("11"), "name": "Brandon Freeman", "parent_id": []any{json.Number("10"), "Azure Interior"}, "child_ids": []any{}},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("search_read mismatch (-want +got):\n%s", diff)
	}

	res = execute(t, srv, "res.partner", "search_read", []any{[]any{"id", "=", 13}}, []any{"parent_id", "credit"})
	row := res.([]any)[0].(map[string]any)
	assert.Equal(t, false, row["parent_id"])
	assert.Equal(t, false, row["credit"], "unset plain columns read as false")

	res = execute(t, srv, "res.partner", "search_read", []any{}, []any{"name"}, 1, 2, "name desc")
	assert.Equal(t, []int64{11, 10}, ids(t, res), "archived Colleen is skipped")

	_, err := srv.Execute(context.Background(), "res.partner", "search_read", []any{}, []any{"nickname"})
	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, "ValueError", f.Code)
}

func TestRead(t *testing.T) {
	srv := newServer(t)
	// read returns archived rows and leaves out missing ids
	res := execute(t, srv, "res.partner", "read", []any{12, 99, 10}, []any{"name"})
	assert.Equal(t, []int64{12, 10}, ids(t, res))

	_, err := srv.Execute(context.Background(), "res.partner", "read", 12, []any{"name"})
	assert.ErrorContains(t, err, "read expects a list of ids")
}

func TestSearchAndCount(t *testing.T) {
	srv := newServer(t)
	assert.Equal(t, []int64{10, 11, 13}, ids(t, execute(t, srv, "res.partner", "search", []any{})))
	// absent credit sorts first
	assert.Equal(t, []int64{13, 11}, ids(t, execute(t, srv, "res.partner", "search", []any{[]any{"active", "=", true}}, 0, 2, "credit, name desc")))
	assert.Equal(t, json.Number("1"), execute(t, srv, "res.partner", "search_count",
		[]any{"|", []any{"child_ids", "!=", false}, []any{"credit", ">", 0}}))
}

func TestWriteCommands(t *testing.T) {
	srv := newServer(t, WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }))
	ctx := context.Background()

	execute(t, srv, "res.partner", "write", []any{13}, map[string]any{
		"parent_id": 10,
		"child_ids": []any{
			[]any{0, 0, map[string]any{"name": "Addict Jr"}},
		},
		"category_ids": []any{[]any{3, 1}, []any{4, 2}, []any{4, 1}},
	})
	row, _ := srv.Row("res.partner", 13)
	assert.Equal(t, int64(10), row["parent_id"])
	assert.Equal(t, []int64{14}, row["child_ids"])
	assert.Equal(t, []int64{2, 1}, row["category_ids"])

	child, ok := srv.Row("res.partner", 14)
	require.True(t, ok)
	assert.Equal(t, "Addict Jr", child["name"])

	execute(t, srv, "res.partner", "write", []any{10}, map[string]any{
		"category_ids": []any{[]any{6, 0, []any{2}}},
		"child_ids":    []any{[]any{5}},
	})
	row, _ = srv.Row("res.partner", 10)
	assert.Equal(t, []int64{2}, row["category_ids"])
	assert.Equal(t, []int64{}, row["child_ids"])

	execute(t, srv, "res.partner", "write", []any{10}, map[string]any{"category_ids": []any{1}})
	row, _ = srv.Row("res.partner", 10)
	assert.Equal(t, []int64{1}, row["category_ids"], "a plain id list replaces the set")

	for name, vals := range map[string]map[string]any{
		"missing target":  {"parent_id": 99},
		"unknown command": {"child_ids": []any{[]any{9, 1}}},
		"unknown field":   {"nickname": "Az"},
		"replace missing": {"category_ids": []any{[]any{6, 0, []any{7}}}},
	} {
		_, err := srv.Execute(ctx, "res.partner", "write", []any{10}, vals)
		assert.Error(t, err, name)
	}
	_, err := srv.Execute(ctx, "res.partner", "write", []any{99}, map[string]any{"name": "x"})
	assert.ErrorContains(t, err, "does not exist")
}

func TestCreateMultiAndUnlink(t *testing.T) {
	srv := newServer(t)
	res := execute(t, srv, "res.partner", "create", []any{
		map[string]any{"name": "One"},
		map[string]any{"name": "Two", "parent_id": 10},
	})
	assert.Equal(t, []int64{14, 15}, ids(t, res))

	_, err := srv.Execute(context.Background(), "res.partner", "create", map[string]any{"parent_id": 99})
	require.Error(t, err)
	_, ok := srv.Row("res.partner", 16)
	assert.False(t, ok, "failed create leaves no row")

	assert.Equal(t, true, execute(t, srv, "res.partner", "unlink", []any{14, 15}))
	_, ok = srv.Row("res.partner", 14)
	assert.False(t, ok)

	_, err = srv.Execute(context.Background(), "res.partner", "unlink", []any{14})
	assert.ErrorContains(t, err, "does not exist")
}

func TestCallLog(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()

	execute(t, srv, "res.partner", "search", []any{[]any{"name", "=", "Azure Interior"}})
	execute(t, srv, "res.partner", "search_count", []any{})

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, Call{Model: "res.partner", Method: "search", Args: []any{[]any{[]any{"name", "=", "Azure Interior"}}}}, calls[0])
	assert.Equal(t, 1, srv.CallCount("search_count"))
	assert.Equal(t, 2, srv.CallCount(""))

	boom := errors.New("boom")
	srv.FailNext("search", boom)
	_, err := srv.Execute(ctx, "res.partner", "search", []any{})
	assert.ErrorIs(t, err, boom)
	_, err = srv.Execute(ctx, "res.partner", "search", []any{})
	assert.NoError(t, err, "FailNext applies once")

	srv.ResetCalls()
	assert.Zero(t, srv.CallCount(""))

	_, err = srv.Execute(ctx, "res.bank", "search", []any{})
	assert.ErrorContains(t, err, "does not exist")
	_, err = srv.Execute(ctx, "res.partner", "fields_get")
	assert.ErrorContains(t, err, `no attribute "fields_get"`)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = srv.Execute(cancelled, "res.partner", "search", []any{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSetVersion(t *testing.T) {
	srv := New()
	assert.Equal(t, "17.0", srv.Version())
	srv.SetVersion("15.0")
	assert.Equal(t, "15.0", srv.Version())
}
