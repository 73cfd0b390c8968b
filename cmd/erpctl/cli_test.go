package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/testutil"
)

// newTestCLI returns a CLI isolated from the user's config files
func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	t.Setenv("ERPCTL_CONFIG", filepath.Join(t.TempDir(), "erpctl.yaml"))
	return NewCLI()
}

func run(cli *CLI, args ...string) (string, error) {
	var out bytes.Buffer
	cli.rootCmd.SetOut(&out)
	cli.rootCmd.SetErr(&out)
	cli.rootCmd.SetArgs(args)
	err := cli.rootCmd.Execute()
	return out.String(), err
}

func decodeRows(t *testing.T, out string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	return rows
}

func TestDemoSearch(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "--format", "json", "search", "res.partner",
		"parent_id", "=", "10", "--fields", "name,parent_name", "--order", "id")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "Brandon Freeman", rows[0]["name"])
	assert.Equal(t, "Azure Interior", rows[0]["parent_name"])
	assert.Equal(t, "Colleen Diaz", rows[1]["name"])
}

func TestDemoSearchGroups(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "search", "res.partner", "ref=AZ001", "or", "ref=DA001", "--ids", "--order", "id")
	require.NoError(t, err)
	assert.Equal(t, "10\n13\n", out)
}

func TestDemoCount(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "search", "product.product", "list_price", ">", "50", "--count")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestDemoFind(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "--format", "json", "find", "res.partner", "azure", "--fields", "name,email")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(10), rows[0]["id"])
	assert.Equal(t, "1.00", rows[0]["score"])
	assert.Equal(t, "partial_name", rows[0]["match"])
	assert.Equal(t, "**Azure** Interior", rows[0]["name"])
	assert.Equal(t, "brandon@**azure**.example", rows[1]["email"])
	assert.Equal(t, "Brandon Freeman", rows[1]["name"])

	cli = newTestCLI(t)
	out, err = run(cli, "--demo", "find", "res.partner", "azure", "is_company", "=", "false", "--limit", "1", "--format", "json")
	require.NoError(t, err)
	rows = decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(11), rows[0]["id"])
}

func TestDemoTable(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "get", "res.country", "1", "2", "--fields", "name,code")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "Belgium")
	assert.Contains(t, lines[2], "France")
}

func TestDemoRecordLifecycle(t *testing.T) {
	cli := newTestCLI(t)

	out, err := run(cli, "--demo", "create", "res.partner", "name=Ready Mat", "parent=10", "credit=12.5")
	require.NoError(t, err)
	id, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	require.NoError(t, err, out)
	ref := strconv.FormatInt(id, 10)

	out, err = run(cli, "--demo", "--format", "json", "get", "res.partner", ref)
	require.NoError(t, err)
	rows := decodeRows(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ready Mat", rows[0]["name"])
	assert.Equal(t, float64(10), rows[0]["parent_id"])
	assert.Equal(t, false, rows[0]["email"])

	_, err = run(cli, "--demo", "update", "res.partner", ref, "email=info@readymat.example")
	require.NoError(t, err)
	out, err = run(cli, "--demo", "--format", "json", "get", "res.partner", ref)
	require.NoError(t, err)
	assert.Equal(t, "info@readymat.example", decodeRows(t, out)[0]["email"])

	_, err = run(cli, "--demo", "delete", "res.partner", ref)
	require.NoError(t, err)
	_, err = run(cli, "--demo", "get", "res.partner", ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, erprecord.ErrNotFound)

	var cliErr *CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.NotEmpty(t, cliErr.Suggestions)
}

func TestDemoTypes(t *testing.T) {
	cli := newTestCLI(t)
	out, err := run(cli, "--demo", "types")
	require.NoError(t, err)
	assert.Contains(t, out, "res.partner")
	assert.Contains(t, out, "product.product")

	cli = newTestCLI(t)
	out, err = run(cli, "--demo", "--format", "json", "types", "res.partner")
	require.NoError(t, err)
	byName := make(map[string]map[string]any)
	for _, row := range decodeRows(t, out) {
		byName[row["name"].(string)] = row
	}
	require.Contains(t, byName, "parent")
	assert.Equal(t, "object", byName["parent"]["projection"])
	assert.Equal(t, "many2one res.partner", byName["parent_id"]["type"])
	assert.Equal(t, "ref", byName["code"]["alias_of"])
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no catalog", []string{"types"}, "no catalog configured"},
		{"unknown model", []string{"--demo", "search", "res.bank"}, `model "res.bank" is not in the catalog`},
		{"unknown field", []string{"--demo", "search", "res.partner", "nam", "=", "x"}, "did you mean one of:"},
		{"bad filter", []string{"--demo", "search", "res.partner", "name", "~", "x"}, "unknown operator"},
		{"bad id", []string{"--demo", "get", "res.partner", "abc"}, `invalid record id "abc"`},
		{"bad value", []string{"--demo", "create", "res.partner", "credit=lots"}, "field credit"},
		{"unknown format", []string{"--demo", "--format", "csv", "get", "res.country", "1"}, "use one of"},
		{"missing connection", []string{"--catalog", "demo/catalog.yaml", "get", "res.country", "1"}, "missing connection settings: db, url, user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := newTestCLI(t)
			_, err := run(cli, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "erpctl.yaml")
	t.Setenv("ERPCTL_CONFIG", path)

	cli := NewCLI()
	out, err := run(cli, "config", "set", "url", "https://erp.example.com")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cli = NewCLI()
	_, err = run(cli, "config", "set", "password", "s3cret")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, yaml.Unmarshal(data, &stored))
	assert.Equal(t, map[string]string{"url": "https://erp.example.com", "password": "s3cret"}, stored)

	cli = NewCLI()
	out, err = run(cli, "config", "show")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "https://erp.example.com", shown["url"])
	assert.Equal(t, "********", shown["password"])
	assert.Equal(t, path, shown["config_file"])

	_, err = run(NewCLI(), "config", "set", "colour", "blue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "colour"`)
}

func TestConfigParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "erpctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unterminated\n"), 0o644))
	t.Setenv("ERPCTL_CONFIG", path)

	_, err := run(NewCLI(), "--demo", "types")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
	assert.Contains(t, err.Error(), "fix or remove "+path)

	out, err := run(NewCLI(), "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want erprecord.Domain
	}{
		{
			name: "empty",
			args: nil,
			want: nil,
		},
		{
			name: "single",
			args: []string{"is_company", "=", "true"},
			want: erprecord.Domain{erprecord.C("is_company", "=", true)},
		},
		{
			name: "implicit and",
			args: []string{"name", "ilike", "azure", "credit", ">=", "10.5"},
			want: erprecord.Domain{
				erprecord.And,
				erprecord.C("name", "ilike", "azure"),
				erprecord.C("credit", ">=", 10.5),
			},
		},
		{
			name: "or of groups",
			args: []string{"active=true", "name", "ilike", "azure", "or", "ref=AZ001"},
			want: erprecord.Domain{
				erprecord.Or,
				erprecord.And,
				erprecord.C("active", "=", true),
				erprecord.C("name", "ilike", "azure"),
				erprecord.C("ref", "=", "AZ001"),
			},
		},
		{
			name: "left to right",
			args: []string{"a=1", "or", "b=2", "and", "c=3"},
			want: erprecord.Domain{
				erprecord.And,
				erprecord.Or,
				erprecord.C("a", "=", int64(1)),
				erprecord.C("b", "=", int64(2)),
				erprecord.C("c", "=", int64(3)),
			},
		},
		{
			name: "not and shorthand",
			args: []string{"not", "parent_id", "=", "null", "email!=x@y"},
			want: erprecord.Domain{
				erprecord.And,
				erprecord.Not,
				erprecord.C("parent_id", "=", nil),
				erprecord.C("email", "!=", "x@y"),
			},
		},
		{
			name: "in list",
			args: []string{"id", "not in", "1, 2,,3"},
			want: erprecord.Domain{erprecord.C("id", "not in", []any{int64(1), int64(2), int64(3)})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseFilters(tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, q.Domain()); diff != "" {
				t.Errorf("Domain() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFiltersErrors(t *testing.T) {
	for _, args := range [][]string{
		{"or", "a=1"},
		{"a=1", "or"},
		{"a=1", "and", "or", "b=2"},
		{"not"},
		{"not", "or", "a=1"},
		{"name", "ilike"},
		{"name", "~", "x"},
	} {
		_, err := parseFilters(args)
		assert.Error(t, err, "args %q", args)
	}
}

func TestParseFieldValue(t *testing.T) {
	schema, ok := testutil.Registry().Schema("res.partner")
	require.True(t, ok)

	tests := []struct {
		field string
		raw   string
		want  any
	}{
		{"name", "Azure", "Azure"},
		{"credit", "12.5", 12.5},
		{"is_company", "true", true},
		{"parent", "10", int64(10)},
		{"parent_id", "null", nil},
		{"child_ids", "11, 12", []int64{11, 12}},
		{"parent_name", "Azure Interior", "Azure Interior"},
		{"metadata", `{"tier":"gold"}`, map[string]any{"tier": "gold"}},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			f, err := schema.Lookup(tt.field)
			require.NoError(t, err)
			got, err := parseFieldValue(f, tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFieldValue(%s, %q) mismatch (-want +got):\n%s", tt.field, tt.raw, diff)
			}
		})
	}

	for field, raw := range map[string]string{"credit": "lots", "is_company": "maybe", "parent": "x", "metadata": "[1]"} {
		f, err := schema.Lookup(field)
		require.NoError(t, err)
		_, err = parseFieldValue(f, raw)
		assert.Error(t, err, field)
	}
}

func TestParseAssignments(t *testing.T) {
	schema, ok := testutil.Registry().Schema("res.partner")
	require.True(t, ok)

	values, err := parseAssignments(schema, []string{"name=A=B", "credit=3"})
	require.NoError(t, err)
	assert.Equal(t, erprecord.Values{"name": "A=B", "credit": 3.0}, values)

	_, err = parseAssignments(schema, []string{"name"})
	assert.ErrorContains(t, err, "expected FIELD=VALUE")

	_, err = parseAssignments(schema, []string{"nmae=x"})
	assert.ErrorIs(t, err, erprecord.ErrFieldResolution)
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", " 1", "", "3"})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 3}, ids)

	for _, bad := range []string{"0", "-2", "x"} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}
