// Package memrpc is an in-memory implementation of the remote record
// service. It speaks the same model methods as the real server
// (search_read, read, search, search_count, create, write, unlink),
// round-trips every argument and result through JSON so callers see
// wire-shaped values, and logs each call for inspection in tests.
package memrpc

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/arthur-debert/erprecord/types"
)

// Column declares one stored field of a model. A Target makes the
// column a reference: a single reference unless Many is set.
type Column struct {
	Name   string
	Target string
	Many   bool
}

// Col declares a plain column
func Col(name string) Column { return Column{Name: name} }

// Many2One declares a single reference column
func Many2One(name, target string) Column { return Column{Name: name, Target: target} }

// ToMany declares a list reference column
func ToMany(name, target string) Column { return Column{Name: name, Target: target, Many: true} }

// Call is one logged Execute invocation, with JSON-normalized args
type Call struct {
	Model  string
	Method string
	Args   []any
}

// Fault is the error returned for requests the server rejects
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string { return fmt.Sprintf("%s: %s", f.Code, f.Message) }

func fault(code, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

type table struct {
	name    string
	columns map[string]Column
	order   []string
	rows    map[int64]map[string]any
	nextID  int64
}

// Server is an in-memory record store. It is safe for concurrent use.
type Server struct {
	mu      sync.Mutex
	version string
	uid     int64
	now     func() time.Time
	tables  map[string]*table
	calls   []Call
	failing map[string]error
	seeding bool
}

// Option configures a Server
type Option func(*Server)

// WithVersion sets the server version reported to clients
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithUID sets the user id stamped into create_uid and write_uid
func WithUID(uid int64) Option { return func(s *Server) { s.uid = uid } }

// WithClock sets the time source for create_date and write_date
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New creates an empty server
func New(opts ...Option) *Server {
	s := &Server{
		version: "17.0",
		uid:     1,
		now:     time.Now,
		tables:  make(map[string]*table),
		failing: make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Define declares a model and its columns. "id" is implicit.
// Redefining a model adds the new columns and keeps its rows.
func (s *Server) Define(model string, columns ...Column) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[model]
	if !ok {
		t = &table{name: model, columns: make(map[string]Column), rows: make(map[int64]map[string]any), nextID: 1}
		s.tables[model] = t
	}
	for _, c := range columns {
		if _, exists := t.columns[c.Name]; !exists {
			t.order = append(t.order, c.Name)
		}
		t.columns[c.Name] = c
	}
}

// Seed stores rows as given, bypassing the call log. A row may carry
// an explicit "id"; list references hold plain id lists. References are
// not checked, so rows may point at rows seeded later.
func (s *Server) Seed(model string, rows ...map[string]any) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(model)
	if err != nil {
		return nil, err
	}
	s.seeding = true
	defer func() { s.seeding = false }()
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		norm, err := normalize(row)
		if err != nil {
			return nil, err
		}
		vals, _ := norm.(map[string]any)
		if vals == nil {
			vals = map[string]any{}
		}
		id := t.nextID
		if raw, ok := vals["id"]; ok {
			if id, ok = types.ToInt64(raw); !ok {
				return nil, fault("ValueError", "%s: invalid id %v", model, raw)
			}
			delete(vals, "id")
		}
		if _, exists := t.rows[id]; exists {
			return nil, fault("ValueError", "%s: duplicate id %d", model, id)
		}
		t.rows[id] = map[string]any{"id": id}
		if id >= t.nextID {
			t.nextID = id + 1
		}
		if err := s.assign(t, id, vals); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SetVersion changes the version reported to clients
func (s *Server) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Version implements the client Session interface
func (s *Server) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// FailNext makes the next call of method fail with err
func (s *Server) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[method] = err
}

// Calls returns the call log
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many logged calls ran method; "" counts all
func (s *Server) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Row returns a copy of a stored row, references as stored ids
func (s *Server) Row(model string, id int64) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[model]
	if !ok {
		return nil, false
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, true
}

// Execute runs a model method. Arguments and the result are
// round-tripped through JSON.
func (s *Server) Execute(ctx context.Context, model, method string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	norm, err := normalize(args)
	if err != nil {
		return nil, err
	}
	params, _ := norm.([]any)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Model: model, Method: method, Args: params})
	if err, ok := s.failing[method]; ok {
		delete(s.failing, method)
		return nil, err
	}
	t, err := s.table(model)
	if err != nil {
		return nil, err
	}
	var res any
	switch method {
	case "search_read":
		res, err = s.searchRead(t, params)
	case "read":
		res, err = s.read(t, params)
	case "search":
		res, err = s.search(t, params)
	case "search_count":
		res, err = s.searchCount(t, params)
	case "create":
		res, err = s.create(t, params)
	case "write":
		res, err = s.write(t, params)
	case "unlink":
		res, err = s.unlink(t, params)
	default:
		return nil, fault("AttributeError", "type object %q has no attribute %q", model, method)
	}
	if err != nil {
		return nil, err
	}
	return normalize(res)
}

func (s *Server) table(model string) (*table, error) {
	t, ok := s.tables[model]
	if !ok {
		return nil, fault("KeyError", "model %q does not exist", model)
	}
	return t, nil
}

func arg(params []any, i int) any {
	if i < len(params) {
		return params[i]
	}
	return nil
}

func (s *Server) searchRead(t *table, params []any) (any, error) {
	ids, err := s.match(t, params[:min(len(params), 1)], arg(params, 2), arg(params, 3), arg(params, 4))
	if err != nil {
		return nil, err
	}
	return s.render(t, ids, arg(params, 1))
}

func (s *Server) read(t *table, params []any) (any, error) {
	ids, ok := types.AsIDs(arg(params, 0))
	if !ok {
		return nil, fault("ValueError", "read expects a list of ids")
	}
	found := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			found = append(found, id)
		}
	}
	return s.render(t, found, arg(params, 1))
}

func (s *Server) search(t *table, params []any) (any, error) {
	return s.match(t, params[:min(len(params), 1)], arg(params, 1), arg(params, 2), arg(params, 3))
}

func (s *Server) searchCount(t *table, params []any) (any, error) {
	ids, err := s.match(t, params[:min(len(params), 1)], nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return len(ids), nil
}

// match returns the ids of rows matching the domain, sorted and paged.
// Like the real service, archived rows (active = false) are skipped
// unless the domain has a term on active.
func (s *Server) match(t *table, domain []any, offset, limit, order any) ([]int64, error) {
	var expr []any
	if len(domain) > 0 && domain[0] != nil {
		var ok bool
		if expr, ok = domain[0].([]any); !ok {
			return nil, fault("ValueError", "domain must be a list")
		}
	}
	_, archivable := t.columns["active"]
	activeTest := archivable && !mentionsActive(expr)
	ev := &evaluator{server: s}
	var ids []int64
	for id, row := range t.rows {
		if activeTest && row["active"] == false {
			continue
		}
		ok, err := ev.matches(t, row, expr)
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, id)
		}
	}
	clause, _ := order.(string)
	if err := s.sortIDs(t, ids, clause); err != nil {
		return nil, err
	}
	if n, ok := types.ToInt64(offset); ok && n > 0 {
		ids = ids[min(int(n), len(ids)):]
	}
	if n, ok := types.ToInt64(limit); ok && n > 0 && int(n) < len(ids) {
		ids = ids[:n]
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// render builds result rows the way the remote service does: single
// references as [id, display name] pairs or false, list references as
// id lists.
func (s *Server) render(t *table, ids []int64, fields any) ([]any, error) {
	names := t.order
	if list, ok := fields.([]any); ok && len(list) > 0 {
		names = make([]string, 0, len(list))
		for _, f := range list {
			name, _ := f.(string)
			if name == "id" {
				continue
			}
			if _, ok := t.columns[name]; !ok {
				return nil, fault("ValueError", "invalid field %q on model %q", name, t.name)
			}
			names = append(names, name)
		}
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		row := t.rows[id]
		rendered := map[string]any{"id": id}
		for _, name := range names {
			rendered[name] = s.renderValue(t.columns[name], row[name])
		}
		out = append(out, rendered)
	}
	return out, nil
}

func (s *Server) renderValue(c Column, v any) any {
	if c.Target == "" {
		if v == nil {
			return false
		}
		return v
	}
	if c.Many {
		ids, _ := types.AsIDs(v)
		if ids == nil {
			ids = []int64{}
		}
		return ids
	}
	id, ok := types.ToInt64(v)
	if !ok || id == 0 {
		return false
	}
	return []any{id, s.displayName(c.Target, id)}
}

func (s *Server) displayName(model string, id int64) string {
	if t, ok := s.tables[model]; ok {
		if row, ok := t.rows[id]; ok {
			if name, ok := row["name"].(string); ok {
				return name
			}
		}
	}
	return fmt.Sprintf("%s,%d", model, id)
}

func (s *Server) create(t *table, params []any) (any, error) {
	switch vals := arg(params, 0).(type) {
	case map[string]any:
		return s.createOne(t, vals)
	case []any:
		ids := make([]int64, 0, len(vals))
		for _, v := range vals {
			m, ok := v.(map[string]any)
			if !ok {
				return nil, fault("ValueError", "create expects a mapping of values")
			}
			id, err := s.createOne(t, m)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}
	return nil, fault("ValueError", "create expects values or a list of values")
}

func (s *Server) createOne(t *table, vals map[string]any) (int64, error) {
	id := t.nextID
	t.nextID++
	t.rows[id] = map[string]any{"id": id}
	stamp := s.now().UTC().Format("2006-01-02 15:04:05")
	defaults := map[string]any{"create_date": stamp, "write_date": stamp, "create_uid": s.uid, "write_uid": s.uid}
	for name, v := range defaults {
		if _, ok := t.columns[name]; ok {
			t.rows[id][name] = v
		}
	}
	if err := s.assign(t, id, vals); err != nil {
		delete(t.rows, id)
		return 0, err
	}
	return id, nil
}

func (s *Server) write(t *table, params []any) (any, error) {
	ids, ok := types.AsIDs(arg(params, 0))
	if !ok {
		return nil, fault("ValueError", "write expects a list of ids")
	}
	vals, ok := arg(params, 1).(map[string]any)
	if !ok {
		return nil, fault("ValueError", "write expects a mapping of values")
	}
	for _, id := range ids {
		if _, ok := t.rows[id]; !ok {
			return nil, fault("MissingError", "record %s(%d) does not exist", t.name, id)
		}
	}
	for _, id := range ids {
		if err := s.assign(t, id, vals); err != nil {
			return nil, err
		}
		if _, ok := t.columns["write_date"]; ok {
			if _, given := vals["write_date"]; !given {
				t.rows[id]["write_date"] = s.now().UTC().Format("2006-01-02 15:04:05")
			}
		}
	}
	return true, nil
}

func (s *Server) unlink(t *table, params []any) (any, error) {
	ids, ok := types.AsIDs(arg(params, 0))
	if !ok {
		return nil, fault("ValueError", "unlink expects a list of ids")
	}
	for _, id := range ids {
		if _, ok := t.rows[id]; !ok {
			return nil, fault("MissingError", "record %s(%d) does not exist", t.name, id)
		}
	}
	for _, id := range ids {
		delete(t.rows, id)
	}
	return true, nil
}

// assign stores write values into a row, applying x2many commands
func (s *Server) assign(t *table, id int64, vals map[string]any) error {
	row := t.rows[id]
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := vals[name]
		c, ok := t.columns[name]
		if !ok {
			return fault("ValueError", "invalid field %q on model %q", name, t.name)
		}
		switch {
		case c.Target == "":
			row[name] = v
		case c.Many:
			current, _ := types.AsIDs(row[name])
			next, err := s.commands(c, current, v)
			if err != nil {
				return err
			}
			row[name] = next
		default:
			if v == false || v == nil {
				row[name] = false
				continue
			}
			ref, ok := types.ToInt64(v)
			if !ok {
				return fault("ValueError", "%s.%s: expected an id, got %v", t.name, name, v)
			}
			if err := s.exists(c.Target, ref); err != nil {
				return err
			}
			row[name] = ref
		}
	}
	return nil
}

// commands applies a list of x2many commands (or a plain id list) to
// the current ids.
func (s *Server) commands(c Column, current []int64, v any) ([]int64, error) {
	if v == false || v == nil {
		return []int64{}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fault("ValueError", "%s: expected a list of commands", c.Name)
	}
	if ids, ok := types.AsIDs(list); ok {
		return ids, nil
	}
	out := append([]int64{}, current...)
	for _, item := range list {
		cmd, ok := item.([]any)
		if !ok || len(cmd) == 0 {
			return nil, fault("ValueError", "%s: malformed command %v", c.Name, item)
		}
		code, _ := types.ToInt64(cmd[0])
		switch code {
		case 0:
			vals, ok := arg(cmd, 2).(map[string]any)
			if !ok {
				return nil, fault("ValueError", "%s: create command needs values", c.Name)
			}
			target, err := s.table(c.Target)
			if err != nil {
				return nil, err
			}
			id, err := s.createOne(target, vals)
			if err != nil {
				return nil, err
			}
			out = append(out, id)
		case 3, 4:
			id, ok := types.ToInt64(arg(cmd, 1))
			if !ok {
				return nil, fault("ValueError", "%s: command %d needs an id", c.Name, code)
			}
			out = without(out, id)
			if code == 4 {
				if err := s.exists(c.Target, id); err != nil {
					return nil, err
				}
				out = append(out, id)
			}
		case 5:
			out = []int64{}
		case 6:
			ids, ok := types.AsIDs(arg(cmd, 2))
			if !ok {
				return nil, fault("ValueError", "%s: replace command needs ids", c.Name)
			}
			for _, id := range ids {
				if err := s.exists(c.Target, id); err != nil {
					return nil, err
				}
			}
			out = ids
		default:
			return nil, fault("ValueError", "%s: unsupported command %d", c.Name, code)
		}
	}
	return out, nil
}

func (s *Server) exists(model string, id int64) error {
	if s.seeding {
		return nil
	}
	t, err := s.table(model)
	if err != nil {
		return err
	}
	if _, ok := t.rows[id]; !ok {
		return fault("MissingError", "record %s(%d) does not exist", model, id)
	}
	return nil
}

func without(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fault("ValueError", "cannot encode %T: %v", v, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fault("ValueError", "cannot decode: %v", err)
	}
	return out, nil
}
