package erprecord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arthur-debert/erprecord/types"
)

// Manager is the entry point for fetching, searching, creating, updating
// and deleting records of one type. Managers are created by a Client and
// share its Session.
type Manager struct {
	client *Client
	schema *Schema
	log    *zap.Logger
}

// Model returns the remote model name
func (m *Manager) Model() string { return m.schema.model }

// Schema returns the record type the manager serves
func (m *Manager) Schema() *Schema { return m.schema }

// Client returns the owning client
func (m *Manager) Client() *Client { return m.client }

func (m *Manager) version() string { return m.client.session.Version() }

// call runs one remote method. Session errors are returned as is.
func (m *Manager) call(ctx context.Context, method string, args ...any) (any, error) {
	start := time.Now()
	res, err := m.client.session.Execute(ctx, m.schema.model, method, args...)
	if err != nil {
		m.log.Debug("remote call failed",
			zap.String("method", method),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	m.log.Debug("remote call",
		zap.String("method", method),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// Call runs an arbitrary remote method on the model and returns the raw
// result.
func (m *Manager) Call(ctx context.Context, method string, args ...any) (any, error) {
	return m.call(ctx, method, args...)
}

func (m *Manager) rows(method string, res any) ([]map[string]any, error) {
	switch rows := res.(type) {
	case []map[string]any:
		return rows, nil
	case []any:
		out := make([]map[string]any, len(rows))
		for i, row := range rows {
			r, ok := row.(map[string]any)
			if !ok {
				return nil, &ValueError{Model: m.schema.model, Field: method, Value: row, Want: "record row"}
			}
			out[i] = r
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, &ValueError{Model: m.schema.model, Field: method, Value: res, Want: "list of record rows"}
}

func (m *Manager) records(rows []map[string]any, fields []string, version string) (Records, error) {
	out := make(Records, len(rows))
	for i, row := range rows {
		r, err := newRecord(m, row, fields, version)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// nullable maps zero values to null so the remote side applies its own
// defaults.
func nullable[T comparable](v T) any {
	var zero T
	if v == zero {
		return nil
	}
	return v
}

// List fetches records by id with one remote read, in the order of ids.
// Archived records are included. Duplicate ids are read once. Unless Optional is given, any id that
// does not exist fails the whole call with ErrNotFound.
func (m *Manager) List(ctx context.Context, ids []int64, opts ...Option) (Records, error) {
	o := collect(opts)
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return Records{}, nil
	}
	version := m.version()
	fields, err := m.schema.wireFields(o.fields, version)
	if err != nil {
		return nil, err
	}
	// read ignores the implicit active filter, so archived rows come
	// back; ids that no longer exist are left out of the result
	res, err := m.call(ctx, "read", ids, fields)
	if err != nil {
		return nil, err
	}
	rows, err := m.rows("read", res)
	if err != nil {
		return nil, err
	}
	found, err := m.records(rows, o.fields, version)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*Record, len(found))
	for _, r := range found {
		byID[r.id] = r
	}
	out := make(Records, 0, len(ids))
	var missing []int64
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 && !o.optional {
		return nil, &NotFoundError{Model: m.schema.model, IDs: missing}
	}
	return out, nil
}

// Get fetches one record by id. With Optional a missing record yields
// nil and no error.
func (m *Manager) Get(ctx context.Context, id int64, opts ...Option) (*Record, error) {
	records, err := m.List(ctx, []int64{id}, opts...)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// Search returns the records matching d with one remote search_read
func (m *Manager) Search(ctx context.Context, d Domain, opts ...Option) (Records, error) {
	o := collect(opts)
	version := m.version()
	domain, err := m.compileDomain(ctx, d)
	if err != nil {
		return nil, err
	}
	fields, err := m.schema.wireFields(o.fields, version)
	if err != nil {
		return nil, err
	}
	order, err := m.order(o.order, version)
	if err != nil {
		return nil, err
	}
	res, err := m.call(ctx, "search_read", domain, fields, o.offset, nullable(o.limit), nullable(order))
	if err != nil {
		return nil, err
	}
	rows, err := m.rows("search_read", res)
	if err != nil {
		return nil, err
	}
	return m.records(rows, o.fields, version)
}

// SearchIDs returns the ids of the records matching d
func (m *Manager) SearchIDs(ctx context.Context, d Domain, opts ...Option) ([]int64, error) {
	o := collect(opts)
	domain, err := m.compileDomain(ctx, d)
	if err != nil {
		return nil, err
	}
	order, err := m.order(o.order, m.version())
	if err != nil {
		return nil, err
	}
	res, err := m.call(ctx, "search", domain, o.offset, nullable(o.limit), nullable(order))
	if err != nil {
		return nil, err
	}
	if res == nil {
		return []int64{}, nil
	}
	ids, ok := types.AsIDs(res)
	if !ok {
		return nil, &ValueError{Model: m.schema.model, Field: "search", Value: res, Want: "list of ids"}
	}
	return ids, nil
}

// Count returns the number of records matching d
func (m *Manager) Count(ctx context.Context, d Domain) (int64, error) {
	domain, err := m.compileDomain(ctx, d)
	if err != nil {
		return 0, err
	}
	res, err := m.call(ctx, "search_count", domain)
	if err != nil {
		return 0, err
	}
	n, ok := types.ToInt64(res)
	if !ok {
		return 0, &ValueError{Model: m.schema.model, Field: "search_count", Value: res, Want: "count"}
	}
	return n, nil
}

// order translates a sort clause such as "name desc, create_user" into
// remote names.
func (m *Manager) order(clause, version string) (string, error) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return "", nil
	}
	terms := strings.Split(clause, ",")
	for i, term := range terms {
		parts := strings.Fields(term)
		if len(parts) == 0 || len(parts) > 2 {
			return "", &FieldError{Model: m.schema.model, Field: term, Reason: "is not a valid sort term"}
		}
		wire, _, err := m.client.resolvePath(m.schema, parts[0], version)
		if err != nil {
			return "", err
		}
		parts[0] = wire
		if len(parts) == 2 {
			dir := strings.ToLower(parts[1])
			if dir != "asc" && dir != "desc" {
				return "", &FieldError{Model: m.schema.model, Field: term, Reason: fmt.Sprintf("has invalid direction %q", parts[1])}
			}
			parts[1] = dir
		}
		terms[i] = strings.Join(parts, " ")
	}
	return strings.Join(terms, ", "), nil
}

// Create creates one record and returns its id. Values may hold nested
// values for references, which are created first.
func (m *Manager) Create(ctx context.Context, values Values) (int64, error) {
	vals, err := m.encoder(ctx, modeCreate).values(values)
	if err != nil {
		return 0, err
	}
	res, err := m.call(ctx, "create", vals)
	if err != nil {
		return 0, err
	}
	if id, ok := types.ToInt64(res); ok {
		return id, nil
	}
	if ids, ok := types.AsIDs(res); ok && len(ids) == 1 {
		return ids[0], nil
	}
	return 0, &ValueError{Model: m.schema.model, Field: "create", Value: res, Want: "record id"}
}

// CreateMulti creates several records with one remote call and returns
// their ids in input order.
func (m *Manager) CreateMulti(ctx context.Context, values ...Values) ([]int64, error) {
	if len(values) == 0 {
		return []int64{}, nil
	}
	enc := m.encoder(ctx, modeCreate)
	batch := make([]any, len(values))
	for i, v := range values {
		vals, err := enc.values(v)
		if err != nil {
			return nil, err
		}
		batch[i] = vals
	}
	res, err := m.call(ctx, "create", batch)
	if err != nil {
		return nil, err
	}
	ids, ok := types.AsIDs(res)
	if !ok || len(ids) != len(values) {
		return nil, &ValueError{Model: m.schema.model, Field: "create", Value: res, Want: fmt.Sprintf("%d record ids", len(values))}
	}
	return ids, nil
}

// Update writes values to one record, given by id or *Record. Nested
// values are rejected.
func (m *Manager) Update(ctx context.Context, record any, values Values) error {
	id, err := m.recordID(record)
	if err != nil {
		return err
	}
	vals, err := m.encoder(ctx, modeUpdate).values(values)
	if err != nil {
		return err
	}
	if len(vals) == 0 {
		return nil
	}
	_, err = m.call(ctx, "write", []int64{id}, vals)
	return err
}

func (m *Manager) recordID(record any) (int64, error) {
	if r, ok := record.(*Record); ok {
		if r == nil {
			return 0, &ValueError{Model: m.schema.model, Field: "id", Value: record, Want: "record"}
		}
		if r.Model() != m.schema.model {
			return 0, &ValueError{Model: m.schema.model, Field: "id", Value: r.Model(), Want: m.schema.model + " record"}
		}
		return r.id, nil
	}
	if id, ok := types.ToInt64(record); ok {
		return id, nil
	}
	return 0, &ValueError{Model: m.schema.model, Field: "id", Value: record, Want: "record id"}
}

// Unlink deletes records with one remote call. Each argument may be an
// id, a *Record, Records, or a slice of those. Nothing is sent when no
// ids are given.
func (m *Manager) Unlink(ctx context.Context, records ...any) error {
	var ids []int64
	for _, r := range records {
		if err := m.flattenIDs(r, &ids); err != nil {
			return err
		}
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := m.call(ctx, "unlink", ids)
	return err
}

// Delete is Unlink
func (m *Manager) Delete(ctx context.Context, records ...any) error {
	return m.Unlink(ctx, records...)
}

func (m *Manager) flattenIDs(v any, ids *[]int64) error {
	switch x := v.(type) {
	case *Record:
		id, err := m.recordID(x)
		if err != nil {
			return err
		}
		*ids = append(*ids, id)
		return nil
	case Records:
		for _, r := range x {
			if err := m.flattenIDs(r, ids); err != nil {
				return err
			}
		}
		return nil
	}
	if items, ok := toList(v); ok {
		for _, item := range items {
			if err := m.flattenIDs(item, ids); err != nil {
				return err
			}
		}
		return nil
	}
	id, err := m.recordID(v)
	if err != nil {
		return err
	}
	*ids = append(*ids, id)
	return nil
}

// GetByName fetches the single record whose name field equals name.
// Zero matches fail with ErrNotFound unless Optional is given, in which
// case the result is nil; more than one match always fails with
// ErrMultipleFound.
func (m *Manager) GetByName(ctx context.Context, name string, opts ...Option) (*Record, error) {
	return m.unique(ctx, m.schema.nameField, "name field", name, opts)
}

// GetByCode is GetByName on the code field
func (m *Manager) GetByCode(ctx context.Context, code string, opts ...Option) (*Record, error) {
	return m.unique(ctx, m.schema.codeField, "code field", code, opts)
}

func (m *Manager) unique(ctx context.Context, field, what, value string, opts []Option) (*Record, error) {
	if field == "" {
		return nil, &ConfigError{Model: m.schema.model, Reason: "no " + what + " declared"}
	}
	o := collect(opts)
	records, err := m.Search(ctx, Domain{C(field, "=", value)}, Fields(o.fields...))
	if err != nil {
		return nil, err
	}
	switch len(records) {
	case 0:
		if o.optional {
			return nil, nil
		}
		return nil, &NotFoundError{Model: m.schema.model, Field: field, Value: value}
	case 1:
		return records[0], nil
	default:
		return nil, &MultipleFoundError{Model: m.schema.model, Field: field, Value: value, IDs: records.IDs()}
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
