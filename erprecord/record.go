package erprecord

import (
	"context"
	"fmt"
	"sync"

	"github.com/arthur-debert/erprecord/types"
)

// Record is an immutable snapshot of one fetched remote row.
//
// Field values are decoded from the snapshot on access and never
// refetched. Object projections of references resolve lazily through
// Ref and Refs: the first call for a relation performs one remote read
// (one batched read for list references) and the result is kept for
// the life of the Record. Refresh returns a new Record; Update and
// Unlink act on the remote row and leave the snapshot untouched.
type Record struct {
	manager *Manager
	id      int64
	raw     map[string]any
	fields  []string
	version string

	mu    sync.Mutex
	cache map[string]any
}

func newRecord(m *Manager, raw map[string]any, fields []string, version string) (*Record, error) {
	id, ok := types.ToInt64(raw["id"])
	if !ok {
		return nil, &ValueError{Model: m.schema.model, Field: "id", Value: raw["id"], Want: "record id"}
	}
	return &Record{
		manager: m,
		id:      id,
		raw:     raw,
		fields:  append([]string(nil), fields...),
		version: version,
	}, nil
}

// ID returns the remote record id
func (r *Record) ID() int64 { return r.id }

// Model returns the remote model name
func (r *Record) Model() string { return r.manager.schema.model }

// Manager returns the manager that produced the record
func (r *Record) Manager() *Manager { return r.manager }

// Schema returns the record type
func (r *Record) Schema() *Schema { return r.manager.schema }

// Fields returns the local field selection the record was read with;
// empty means the schema default selection.
func (r *Record) Fields() []string { return append([]string(nil), r.fields...) }

func (r *Record) String() string {
	return fmt.Sprintf("%s(%d)", r.Model(), r.id)
}

func (r *Record) rawField(f *Field) (any, bool) {
	v, ok := r.raw[r.manager.schema.WireName(f, r.version)]
	return v, ok
}

// Get returns the decoded value of a declared field. Object projections
// yield the referenced id (or ids); use Ref and Refs to resolve them.
// Get never calls the remote service.
func (r *Record) Get(name string) (any, error) {
	s := r.manager.schema
	f, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if f == idField {
		return r.id, nil
	}
	raw, ok := r.rawField(f)
	if !ok {
		return nil, &FieldError{Model: s.model, Field: name, Reason: "was not fetched"}
	}
	return decodeValue(s, f, raw)
}

// Extra returns a raw field the schema does not declare, classified by
// shape. Declared fields are not reachable through Extra.
func (r *Record) Extra(name string) (types.Value, bool) {
	if r.declaredWire()[name] {
		return types.Value{}, false
	}
	raw, ok := r.raw[name]
	if !ok {
		return types.Value{}, false
	}
	return types.NewValue(raw), true
}

// Extras returns the names of raw fields no declared field maps to
func (r *Record) Extras() []string {
	declared := r.declaredWire()
	var out []string
	for name := range r.raw {
		if !declared[name] {
			out = append(out, name)
		}
	}
	return out
}

func (r *Record) declaredWire() map[string]bool {
	s := r.manager.schema
	out := map[string]bool{"id": true}
	for _, f := range s.fields {
		out[s.WireName(f, r.version)] = true
	}
	return out
}

func (r *Record) refField(name string, many bool) (*Field, error) {
	s := r.manager.schema
	f, err := s.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !f.IsRef() {
		return nil, &FieldError{Model: s.model, Field: name, Reason: "is not a reference"}
	}
	if f.Many != many {
		if many {
			return nil, &FieldError{Model: s.model, Field: name, Reason: "is a single reference, use Ref"}
		}
		return nil, &FieldError{Model: s.model, Field: name, Reason: "is a list reference, use Refs"}
	}
	return f, nil
}

func (r *Record) cached(base string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache[base]
	return v, ok
}

// remember stores v unless another access stored first, and returns the
// stored value.
func (r *Record) remember(base string, v any) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.cache[base]; ok {
		return prev
	}
	if r.cache == nil {
		r.cache = make(map[string]any)
	}
	r.cache[base] = v
	return v
}

// Ref resolves a single reference (by any of its projection names) to
// the referenced record. A reference without value yields nil. The
// first call performs one remote read; later calls return the same
// record.
func (r *Record) Ref(ctx context.Context, name string) (*Record, error) {
	f, err := r.refField(name, false)
	if err != nil {
		return nil, err
	}
	if v, ok := r.cached(f.base); ok {
		return v.(*Record), nil
	}
	raw, ok := r.rawField(f)
	if !ok {
		return nil, &FieldError{Model: r.Model(), Field: name, Reason: "was not fetched"}
	}
	idf := *f
	idf.Projection = types.ProjectID
	idf.Optional = types.OptionalNone
	decoded, err := decodeValue(r.manager.schema, &idf, raw)
	if err != nil {
		return nil, err
	}
	var ref *Record
	if decoded != nil {
		target, err := r.manager.client.managerFor(f)
		if err != nil {
			return nil, err
		}
		if ref, err = target.Get(ctx, decoded.(int64)); err != nil {
			return nil, err
		}
	}
	return r.remember(f.base, ref).(*Record), nil
}

// Refs resolves a list reference to its records with one batched read,
// in the order the remote service listed the ids. The result is cached
// like Ref.
func (r *Record) Refs(ctx context.Context, name string) (Records, error) {
	f, err := r.refField(name, true)
	if err != nil {
		return nil, err
	}
	if v, ok := r.cached(f.base); ok {
		return v.(Records), nil
	}
	raw, ok := r.rawField(f)
	if !ok {
		return nil, &FieldError{Model: r.Model(), Field: name, Reason: "was not fetched"}
	}
	decoded, err := decodeValue(r.manager.schema, f, raw)
	if err != nil {
		return nil, err
	}
	target, err := r.manager.client.managerFor(f)
	if err != nil {
		return nil, err
	}
	refs, err := target.List(ctx, decoded.([]int64))
	if err != nil {
		return nil, err
	}
	return r.remember(f.base, refs).(Records), nil
}

// Map materializes the record as a plain mapping. With raw set it is a
// deep copy of the row keyed by remote names with remote values. Otherwise
// every fetched declared field appears under its local name with its
// decoded value (references as ids and labels, never as records), and
// undeclared fields appear under their remote names with remote values.
func (r *Record) Map(raw bool) (map[string]any, error) {
	if raw {
		out := make(map[string]any, len(r.raw))
		for k, v := range r.raw {
			out[k] = types.CloneRaw(v)
		}
		return out, nil
	}
	s := r.manager.schema
	out := make(map[string]any, len(s.fields)+1)
	out["id"] = r.id
	for _, name := range s.order {
		f := s.fields[name]
		value, ok := r.rawField(f)
		if !ok {
			continue
		}
		decoded, err := decodeValue(s, f, value)
		if err != nil {
			return nil, err
		}
		out[name] = decoded
	}
	for _, name := range r.Extras() {
		out[name] = types.CloneRaw(r.raw[name])
	}
	return out, nil
}

// Refresh reads the record again with the same field selection and
// returns the new snapshot.
func (r *Record) Refresh(ctx context.Context) (*Record, error) {
	return r.manager.Get(ctx, r.id, Fields(r.fields...))
}

// Update writes values to the remote row. The snapshot is unchanged;
// call Refresh to observe the new values.
func (r *Record) Update(ctx context.Context, values Values) error {
	return r.manager.Update(ctx, r, values)
}

// Unlink deletes the remote row. The snapshot stays readable, but
// Refresh fails with ErrNotFound afterwards.
func (r *Record) Unlink(ctx context.Context) error {
	return r.manager.Unlink(ctx, r)
}

// Delete is Unlink
func (r *Record) Delete(ctx context.Context) error {
	return r.Unlink(ctx)
}

// Records is an ordered list of records of one type
type Records []*Record

// IDs returns the record ids in order
func (rs Records) IDs() []int64 {
	ids := make([]int64, len(rs))
	for i, r := range rs {
		ids[i] = r.id
	}
	return ids
}

// Maps materializes every record with Record.Map
func (rs Records) Maps(raw bool) ([]map[string]any, error) {
	out := make([]map[string]any, len(rs))
	for i, r := range rs {
		m, err := r.Map(raw)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}
