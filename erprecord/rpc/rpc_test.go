package rpc_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/erprecord/rpc"
)

type rpcCall struct {
	Service string
	Method  string
	Args    []any
}

// fakeServer answers the common and object services
type fakeServer struct {
	mu      sync.Mutex
	calls   []rpcCall
	version map[string]any
	uid     any
	object  func(args []any) (any, map[string]any)
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req struct {
		ID     string `json:"id"`
		Params struct {
			Service string `json:"service"`
			Method  string `json:"method"`
			Args    []any  `json:"args"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{req.Params.Service, req.Params.Method, req.Params.Args})
	f.mu.Unlock()

	var result any
	var fault map[string]any
	switch req.Params.Service + "." + req.Params.Method {
	case "common.version":
		result = f.version
	case "common.authenticate":
		result = f.uid
	case "object.execute_kw":
		result, fault = f.object(req.Params.Args)
	default:
		fault = map[string]any{"code": 404, "message": "unknown service"}
	}

	out := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if fault != nil {
		out["error"] = fault
	} else {
		out["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (f *fakeServer) lastCall() rpcCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newFake() *fakeServer {
	return &fakeServer{
		version: map[string]any{
			"server_version":      "17.0+e",
			"server_version_info": []any{17, 0, 0, "final", 0, "e"},
		},
		uid: 2,
		object: func(args []any) (any, map[string]any) {
			return []any{map[string]any{"id": 7, "name": "Azure Interior", "credit": 1250.75}}, nil
		},
	}
}

func dial(t *testing.T, fake *fakeServer) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := rpc.Dial(context.Background(), rpc.Config{
		URL:      srv.URL + "/",
		Database: "demo",
		Username: "admin",
		Password: "secret",
		Timeout:  5 * time.Second,
	}, rpc.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

func TestDialDetectsVersionAndLogsIn(t *testing.T) {
	fake := newFake()
	c := dial(t, fake)

	assert.Equal(t, "17.0", c.Version())
	assert.Equal(t, int64(2), c.UID())

	login := fake.calls[1]
	assert.Equal(t, "authenticate", login.Method)
	assert.Equal(t, []any{"demo", "admin", "secret", map[string]any{}}, login.Args)
}

func TestExecuteSendsExecuteKw(t *testing.T) {
	fake := newFake()
	c := dial(t, fake)

	domain := []any{[]any{"is_company", "=", true}}
	result, err := c.Execute(context.Background(), "res.partner", "search_read", domain, []string{"name", "credit"})
	require.NoError(t, err)

	call := fake.lastCall()
	assert.Equal(t, "object", call.Service)
	assert.Equal(t, "execute_kw", call.Method)
	want := []any{
		"demo", float64(2), "secret", "res.partner", "search_read",
		[]any{[]any{[]any{"is_company", "=", true}}, []any{"name", "credit"}},
		map[string]any{},
	}
	if diff := cmp.Diff(want, call.Args); diff != "" {
		t.Errorf("execute_kw args mismatch (-want +got):\n%s", diff)
	}

	rows, ok := result.([]any)
	require.True(t, ok)
	row := rows[0].(map[string]any)
	assert.Equal(t, json.Number("7"), row["id"], "numbers stay exact")
	assert.Equal(t, json.Number("1250.75"), row["credit"])
}

func TestExecuteRemoteFault(t *testing.T) {
	fake := newFake()
	fake.object = func(args []any) (any, map[string]any) {
		return nil, map[string]any{
			"code":    200,
			"message": "Odoo Server Error",
			"data": map[string]any{
				"name":    "odoo.exceptions.AccessError",
				"message": "You are not allowed to modify this document",
				"debug":   "Traceback ...",
			},
		}
	}
	c := dial(t, fake)

	_, err := c.Execute(context.Background(), "res.partner", "write", []int64{1}, map[string]any{"name": "x"})
	var remote *rpc.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 200, remote.Code)
	assert.Equal(t, "odoo.exceptions.AccessError", remote.Name)
	assert.Contains(t, err.Error(), "not allowed to modify")
}

func TestDialRejectedLogin(t *testing.T) {
	fake := newFake()
	fake.uid = false
	srv := httptest.NewServer(fake)
	defer srv.Close()

	_, err := rpc.Dial(context.Background(), rpc.Config{URL: srv.URL, Database: "demo", Username: "admin", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, rpc.ErrAuthentication))
}

func TestVersionFormats(t *testing.T) {
	tests := []struct {
		name string
		info map[string]any
		want string
	}{
		{"version info", map[string]any{"server_version_info": []any{16, 0, 0, "final", 0, ""}}, "16.0"},
		{"saas", map[string]any{"server_version_info": []any{"saas~17", 2, 0, "final", 0, ""}}, "17.2"},
		{"string only", map[string]any{"server_version": "15.0+e"}, "15.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.version = tt.info
			c := dial(t, fake)
			assert.Equal(t, tt.want, c.Version())
		})
	}
}

func TestHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := rpc.Dial(context.Background(), rpc.Config{URL: srv.URL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	_, err = rpc.Dial(context.Background(), rpc.Config{})
	assert.Error(t, err, "URL is required")
}

func TestExecuteRequiresLogin(t *testing.T) {
	c := rpc.New(rpc.Config{URL: "http://127.0.0.1:1"})
	_, err := c.Execute(context.Background(), "res.partner", "search", []any{})
	assert.ErrorContains(t, err, "not authenticated")
}

func TestClientServesManagers(t *testing.T) {
	fake := newFake()
	c := dial(t, fake)

	reg := erprecord.NewRegistry()
	reg.MustDefine("res.partner", func(b *erprecord.SchemaBuilder) { b.String("name").Float("credit") })
	client, err := erprecord.NewClient(c, reg)
	require.NoError(t, err)

	r, err := client.MustModel("res.partner").Get(context.Background(), 7)
	require.NoError(t, err)
	credit, err := r.Get("credit")
	require.NoError(t, err)
	assert.Equal(t, 1250.75, credit)
}

var _ erprecord.Session = (*rpc.Client)(nil)
