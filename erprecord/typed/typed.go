// Package typed maps records onto Go structs.
//
// Struct fields bind to record fields through the erp tag:
//
//	type Partner struct {
//		*erprecord.Record
//		ID      int64      `erp:"id"`
//		Name    string     `erp:"name"`
//		Email   *string    `erp:"email"`
//		Parent  *int64     `erp:"parent"`
//		Country string     `erp:"country_name"`
//		Tags    []int64    `erp:"category_ids,omitempty"`
//		Since   time.Time  `erp:"create_date"`
//	}
//
// Untagged exported fields bind to the snake_case form of their name;
// `erp:"-"` skips a field. Pointer fields decode absent values to nil.
// An embedded *erprecord.Record receives the underlying record, which
// keeps Ref, Refs and Refresh available on typed values.
package typed

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/types"
)

var (
	recordType = reflect.TypeOf((*erprecord.Record)(nil))
	timeType   = reflect.TypeOf(time.Time{})
	idsType    = reflect.TypeOf([]int64(nil))
	mapType    = reflect.TypeOf(map[string]any(nil))
)

type binding struct {
	index     int
	name      string
	field     *erprecord.Field
	omitempty bool
}

// Manager is a typed view of an erprecord.Manager
type Manager[T any] struct {
	m        *erprecord.Manager
	bindings []binding
	names    []string
	embed    int
}

// New binds T to the record type served by m. Every bound field must
// be declared on the record type with a compatible Go type.
func New[T any](m *erprecord.Manager) (*Manager[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, &erprecord.ConfigError{Model: m.Model(), Reason: fmt.Sprintf("typed records need a struct, got %s", typ)}
	}
	tm := &Manager[T]{m: m, embed: -1}
	s := m.Schema()
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Anonymous && sf.Type == recordType {
			tm.embed = i
			continue
		}
		if !sf.IsExported() {
			continue
		}
		name, omitempty := parseTag(sf)
		if name == "-" {
			continue
		}
		f, err := s.Lookup(name)
		if err != nil {
			return nil, &erprecord.ConfigError{Model: m.Model(), Field: name, Reason: fmt.Sprintf("struct field %s: %v", sf.Name, err)}
		}
		if !compatible(f, sf.Type) {
			return nil, &erprecord.ConfigError{Model: m.Model(), Field: name,
				Reason: fmt.Sprintf("struct field %s has type %s, which cannot hold %s", sf.Name, sf.Type, describe(f))}
		}
		tm.bindings = append(tm.bindings, binding{index: i, name: name, field: f, omitempty: omitempty})
		tm.names = append(tm.names, name)
	}
	return tm, nil
}

// MustNew is New that panics on error
func MustNew[T any](m *erprecord.Manager) *Manager[T] {
	tm, err := New[T](m)
	if err != nil {
		panic(err)
	}
	return tm
}

// Untyped returns the underlying manager
func (tm *Manager[T]) Untyped() *erprecord.Manager { return tm.m }

// Fields returns the local field names T binds
func (tm *Manager[T]) Fields() []string { return append([]string(nil), tm.names...) }

func parseTag(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("erp")
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		name = snakeCase(sf.Name)
	}
	omitempty := false
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(f *erprecord.Field) string {
	switch {
	case f.IsRef() && f.Many:
		return "a list reference"
	case f.IsRef() && f.Projection == types.ProjectName:
		return "a reference label"
	case f.IsRef():
		return "a reference"
	}
	return f.Kind.String()
}

func compatible(f *erprecord.Field, t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		return true
	}
	if f.IsRef() {
		switch {
		case f.Many:
			return t == idsType
		case f.Projection == types.ProjectName:
			return t.Kind() == reflect.String
		default:
			return isInt(t)
		}
	}
	switch f.Kind {
	case types.KindBool:
		return t.Kind() == reflect.Bool
	case types.KindInt:
		return isInt(t)
	case types.KindFloat:
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case types.KindString, types.KindEnum:
		return t.Kind() == reflect.String
	case types.KindDate, types.KindDatetime:
		return t == timeType
	case types.KindMap:
		return t == mapType
	}
	return false
}

func isInt(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

// withFields reads the bound fields unless the caller selects others
func (tm *Manager[T]) withFields(opts []erprecord.Option) []erprecord.Option {
	return append([]erprecord.Option{erprecord.Fields(tm.names...)}, opts...)
}

// Get fetches one record as a T. With erprecord.Optional a missing
// record yields nil.
func (tm *Manager[T]) Get(ctx context.Context, id int64, opts ...erprecord.Option) (*T, error) {
	r, err := tm.m.Get(ctx, id, tm.withFields(opts)...)
	if err != nil || r == nil {
		return nil, err
	}
	return tm.Decode(r)
}

// List fetches records by id, in the order of ids
func (tm *Manager[T]) List(ctx context.Context, ids []int64, opts ...erprecord.Option) ([]*T, error) {
	records, err := tm.m.List(ctx, ids, tm.withFields(opts)...)
	if err != nil {
		return nil, err
	}
	return tm.DecodeAll(records)
}

// Search returns the records matching d
func (tm *Manager[T]) Search(ctx context.Context, d erprecord.Domain, opts ...erprecord.Option) ([]*T, error) {
	records, err := tm.m.Search(ctx, d, tm.withFields(opts)...)
	if err != nil {
		return nil, err
	}
	return tm.DecodeAll(records)
}

// GetByName fetches the record whose name field equals name
func (tm *Manager[T]) GetByName(ctx context.Context, name string, opts ...erprecord.Option) (*T, error) {
	r, err := tm.m.GetByName(ctx, name, tm.withFields(opts)...)
	if err != nil || r == nil {
		return nil, err
	}
	return tm.Decode(r)
}

// Create writes every writable bound field of v and returns the new id.
// Fields tagged omitempty are left out when zero.
func (tm *Manager[T]) Create(ctx context.Context, v *T) (int64, error) {
	values, err := tm.Encode(v)
	if err != nil {
		return 0, err
	}
	return tm.m.Create(ctx, values)
}

// Update writes the named bound fields of v, or every writable bound
// field when none are named. The id comes from the embedded record or
// the field bound to "id".
func (tm *Manager[T]) Update(ctx context.Context, v *T, fields ...string) error {
	id, err := tm.ID(v)
	if err != nil {
		return err
	}
	values, err := tm.Encode(v)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		selected := make(erprecord.Values, len(fields))
		for _, name := range fields {
			value, ok := values[name]
			if !ok {
				return &erprecord.FieldError{Model: tm.m.Model(), Field: name, Reason: "is not a writable bound field"}
			}
			selected[name] = value
		}
		values = selected
	}
	return tm.m.Update(ctx, id, values)
}

// Delete deletes the records with the given ids
func (tm *Manager[T]) Delete(ctx context.Context, ids ...int64) error {
	return tm.m.Unlink(ctx, ids)
}

// ID returns the record id carried by v
func (tm *Manager[T]) ID(v *T) (int64, error) {
	val := reflect.ValueOf(v).Elem()
	if tm.embed >= 0 {
		if r, ok := val.Field(tm.embed).Interface().(*erprecord.Record); ok && r != nil {
			return r.ID(), nil
		}
	}
	for _, b := range tm.bindings {
		if b.name != "id" {
			continue
		}
		fv := val.Field(b.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				break
			}
			fv = fv.Elem()
		}
		if isInt(fv.Type()) && fv.Int() != 0 {
			return fv.Int(), nil
		}
	}
	return 0, &erprecord.ValueError{Model: tm.m.Model(), Field: "id", Value: nil, Want: "record id (embedded record or id field)"}
}

// Decode fills a new T from a record
func (tm *Manager[T]) Decode(r *erprecord.Record) (*T, error) {
	out := new(T)
	val := reflect.ValueOf(out).Elem()
	if tm.embed >= 0 {
		val.Field(tm.embed).Set(reflect.ValueOf(r))
	}
	for _, b := range tm.bindings {
		value, err := r.Get(b.name)
		if err != nil {
			return nil, err
		}
		if err := setField(val.Field(b.index), value); err != nil {
			return nil, &erprecord.ValueError{Model: tm.m.Model(), Field: b.name, Value: value, Want: val.Field(b.index).Type().String()}
		}
	}
	return out, nil
}

// DecodeAll decodes records in order
func (tm *Manager[T]) DecodeAll(records erprecord.Records) ([]*T, error) {
	out := make([]*T, len(records))
	for i, r := range records {
		v, err := tm.Decode(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Encode turns the writable bound fields of v into write values
func (tm *Manager[T]) Encode(v *T) (erprecord.Values, error) {
	if v == nil {
		return nil, &erprecord.ValueError{Model: tm.m.Model(), Field: "", Value: nil, Want: "non-nil struct"}
	}
	val := reflect.ValueOf(v).Elem()
	values := make(erprecord.Values, len(tm.bindings))
	for _, b := range tm.bindings {
		if b.name == "id" || b.field.ReadOnly() {
			continue
		}
		fv := val.Field(b.index)
		if b.omitempty && fv.IsZero() {
			continue
		}
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				values[b.name] = nil
				continue
			}
			fv = fv.Elem()
		}
		// id 0 references nothing; the server spells that false
		if b.field.IsRef() && !b.field.Many && fv.CanInt() && fv.Int() == 0 {
			values[b.name] = false
			continue
		}
		values[b.name] = fv.Interface()
	}
	return values, nil
}

// setField assigns a decoded value. nil and false (absent values)
// leave the zero value; pointers are allocated for present values.
func setField(fv reflect.Value, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if b, ok := value.(bool); ok && !b && fv.Type().Kind() != reflect.Bool && !isBoolPtr(fv.Type()) {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(fv.Type().Elem())
		if err := setField(ptr.Elem(), value); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case rv.Type().ConvertibleTo(fv.Type()) && rv.Kind() != reflect.String && fv.Kind() != reflect.String:
		fv.Set(rv.Convert(fv.Type()))
	case rv.Kind() == reflect.String && fv.Kind() == reflect.String:
		fv.SetString(rv.String())
	default:
		return fmt.Errorf("cannot assign %T to %s", value, fv.Type())
	}
	return nil
}

func isBoolPtr(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Bool
}
