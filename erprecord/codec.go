package erprecord

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/arthur-debert/erprecord/types"
)

// Remote date formats. Datetimes are UTC.
const (
	DateFormat     = "2006-01-02"
	DatetimeFormat = "2006-01-02 15:04:05"
)

// Values holds field values keyed by local name (or alias, or any
// writable projection) for create, update and nested creates.
type Values map[string]any

// x2many write commands
const (
	cmdCreate  = 0
	cmdLink    = 4
	cmdReplace = 6
)

func isFalse(v any) bool {
	b, ok := v.(bool)
	return ok && !b
}

// decodeValue converts one raw wire value into the local representation
// of f. Absence (false or null) follows the field's optional policy.
func decodeValue(s *Schema, f *Field, raw any) (any, error) {
	if f.IsRef() && f.Many {
		if raw == nil || isFalse(raw) {
			return []int64{}, nil
		}
		ids, ok := types.AsIDs(raw)
		if !ok {
			return nil, &ValueError{Model: s.model, Field: f.Name, Value: raw, Want: "list of ids"}
		}
		return ids, nil
	}
	if raw == nil || (isFalse(raw) && f.Kind != types.KindBool) {
		switch f.Optional {
		case types.OptionalNone:
			return nil, nil
		case types.OptionalFalse:
			return false, nil
		default:
			// Required passes the sentinel through: the server sends
			// false for empty fields it considers required too
			return raw, nil
		}
	}

	fail := func() (any, error) {
		return nil, &ValueError{Model: s.model, Field: f.Name, Value: raw, Want: f.describe()}
	}
	switch f.Kind {
	case types.KindBool:
		b, ok := raw.(bool)
		if !ok {
			return fail()
		}
		return b, nil
	case types.KindInt:
		i, ok := types.ToInt64(raw)
		if !ok {
			return fail()
		}
		return i, nil
	case types.KindFloat:
		v, ok := types.ToFloat64(raw)
		if !ok {
			return fail()
		}
		return v, nil
	case types.KindString, types.KindEnum:
		str, ok := raw.(string)
		if !ok {
			return fail()
		}
		return str, nil
	case types.KindDate, types.KindDatetime:
		str, ok := raw.(string)
		if !ok {
			return fail()
		}
		t, err := parseTime(f.Kind, str)
		if err != nil {
			return fail()
		}
		return t, nil
	case types.KindMap:
		m, ok := raw.(map[string]any)
		if !ok {
			return fail()
		}
		return types.CloneRaw(m), nil
	case types.KindRef:
		if pair, ok := types.AsPair(raw); ok {
			if f.Projection == types.ProjectName {
				return pair.Label, nil
			}
			return pair.ID, nil
		}
		if id, ok := types.ToInt64(raw); ok {
			if f.Projection == types.ProjectName {
				return "", nil
			}
			return id, nil
		}
		return fail()
	}
	return fail()
}

func parseTime(kind types.Kind, s string) (time.Time, error) {
	layouts := []string{DatetimeFormat, time.RFC3339, DateFormat}
	if kind == types.KindDate {
		layouts = []string{DateFormat, DatetimeFormat}
	}
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func formatTime(kind types.Kind, t time.Time) string {
	if kind == types.KindDate {
		return t.Format(DateFormat)
	}
	return t.UTC().Format(DatetimeFormat)
}

type encodeMode int

const (
	modeCreate encodeMode = iota
	modeUpdate
	modeFilter
)

// encoder converts local values into wire values for one record type.
// Nested single-reference creates go through the target type's manager,
// which is why encoding takes a context.
type encoder struct {
	ctx     context.Context
	m       *Manager
	version string
	mode    encodeMode
}

func (m *Manager) encoder(ctx context.Context, mode encodeMode) *encoder {
	return &encoder{ctx: ctx, m: m, version: m.client.session.Version(), mode: mode}
}

// values encodes a write input. Every key must resolve to a writable
// field and no two keys may name the same remote field.
func (e *encoder) values(vals Values) (map[string]any, error) {
	s := e.m.schema
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(vals))
	from := make(map[string]string, len(vals))
	for _, key := range keys {
		f, err := s.Lookup(key)
		if err != nil {
			return nil, err
		}
		if f.ReadOnly() || f == idField {
			return nil, &FieldError{Model: s.model, Field: key, Reason: "is read-only and cannot be written", readOnly: true}
		}
		wire := s.WireName(f, e.version)
		if prev, dup := from[wire]; dup {
			return nil, &FieldError{Model: s.model, Field: key, Reason: fmt.Sprintf("names the same field as %q", prev)}
		}
		enc, err := e.value(f, vals[key])
		if err != nil {
			return nil, err
		}
		from[wire] = key
		out[wire] = enc
	}
	return out, nil
}

func (e *encoder) fail(f *Field, v any) error {
	return &ValueError{Model: e.m.schema.model, Field: f.Name, Value: v, Want: f.describe()}
}

func (e *encoder) value(f *Field, v any) (any, error) {
	if v == nil {
		return false, nil
	}
	if f.IsRef() {
		if f.Many {
			return e.refList(f, v)
		}
		return e.refOne(f, v)
	}
	switch f.Kind {
	case types.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case types.KindInt:
		if i, ok := types.ToInt64(v); ok {
			return i, nil
		}
	case types.KindFloat:
		if x, ok := types.ToFloat64(v); ok {
			return x, nil
		}
	case types.KindString, types.KindEnum:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		if isFalse(v) {
			return false, nil
		}
	case types.KindDate, types.KindDatetime:
		switch t := v.(type) {
		case time.Time:
			return formatTime(f.Kind, t), nil
		case *time.Time:
			if t == nil {
				return false, nil
			}
			return formatTime(f.Kind, *t), nil
		case string:
			if _, err := parseTime(f.Kind, t); err == nil {
				return t, nil
			}
		case bool:
			if !t {
				return false, nil
			}
		}
	case types.KindMap:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Map {
			return v, nil
		}
	}
	return nil, e.fail(f, v)
}

func (e *encoder) refOne(f *Field, v any) (any, error) {
	switch ref := v.(type) {
	case *Record:
		return e.recordID(f, ref)
	case Values:
		return e.nestedOne(f, ref)
	case map[string]any:
		return e.nestedOne(f, Values(ref))
	case bool:
		if !ref {
			return false, nil
		}
	}
	if id, ok := types.ToInt64(v); ok {
		return id, nil
	}
	return nil, e.fail(f, v)
}

func (e *encoder) recordID(f *Field, r *Record) (int64, error) {
	if r == nil {
		return 0, e.fail(f, r)
	}
	if r.Model() != f.Target {
		return 0, &ValueError{Model: e.m.schema.model, Field: f.Name, Value: r.Model(), Want: f.Target + " record"}
	}
	return r.ID(), nil
}

func (e *encoder) nestedOne(f *Field, vals Values) (any, error) {
	if e.mode != modeCreate {
		return nil, &ValueError{Model: e.m.schema.model, Field: f.Name, Value: vals, Want: "id or record (nested values are accepted on create only)"}
	}
	target, err := e.m.client.managerFor(f)
	if err != nil {
		return nil, err
	}
	return target.Create(e.ctx, vals)
}

// refList encodes a list reference. Plain ids (or records) replace the
// linked set; a list containing nested values is written element by
// element, linking ids and creating the nested records, in input order.
func (e *encoder) refList(f *Field, v any) (any, error) {
	items, ok := toList(v)
	if !ok {
		if isFalse(v) {
			return []any{[]any{cmdReplace, 0, []int64{}}}, nil
		}
		return nil, e.fail(f, v)
	}
	ids := make([]int64, 0, len(items))
	commands := make([]any, 0, len(items))
	nested := false
	for _, item := range items {
		switch it := item.(type) {
		case Values:
			if err := e.appendNested(f, it, &commands); err != nil {
				return nil, err
			}
			nested = true
			continue
		case map[string]any:
			if err := e.appendNested(f, Values(it), &commands); err != nil {
				return nil, err
			}
			nested = true
			continue
		case *Record:
			id, err := e.recordID(f, it)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
			commands = append(commands, []any{cmdLink, id, 0})
			continue
		}
		id, ok := types.ToInt64(item)
		if !ok {
			return nil, e.fail(f, item)
		}
		ids = append(ids, id)
		commands = append(commands, []any{cmdLink, id, 0})
	}
	if !nested {
		return []any{[]any{cmdReplace, 0, ids}}, nil
	}
	return commands, nil
}

func (e *encoder) appendNested(f *Field, vals Values, commands *[]any) error {
	if e.mode != modeCreate {
		return &ValueError{Model: e.m.schema.model, Field: f.Name, Value: vals, Want: "ids or records (nested values are accepted on create only)"}
	}
	target, err := e.m.client.managerFor(f)
	if err != nil {
		return err
	}
	enc, err := target.encoder(e.ctx, modeCreate).values(vals)
	if err != nil {
		return err
	}
	*commands = append(*commands, []any{cmdCreate, 0, enc})
	return nil
}

// filterValue encodes a criterion value. Collections become lists and
// records become ids; other values are sent as given.
func (e *encoder) filterValue(f *Field, v any) (any, error) {
	if items, ok := toList(v); ok {
		out := make([]any, len(items))
		for i, item := range items {
			enc, err := e.filterScalar(f, item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	}
	return e.filterScalar(f, v)
}

func (e *encoder) filterScalar(f *Field, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case *Record:
		if x == nil {
			return false, nil
		}
		return x.ID(), nil
	case time.Time:
		return formatTime(f.Kind, x), nil
	case Values, map[string]any:
		return nil, &ValueError{Model: e.m.schema.model, Field: f.Name, Value: v, Want: "filter value"}
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String && rv.Type() != reflect.TypeOf("") {
		return rv.String(), nil
	}
	return v, nil
}

// toList flattens slices, arrays and sets (maps with struct{} or bool
// values) into a list. Set members are sorted so the output is stable.
func toList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		elem := rv.Type().Elem()
		isSet := elem.Kind() == reflect.Bool || (elem.Kind() == reflect.Struct && elem.NumField() == 0)
		if !isSet {
			return nil, false
		}
		out := make([]any, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if elem.Kind() == reflect.Bool && !iter.Value().Bool() {
				continue
			}
			out = append(out, iter.Key().Interface())
		}
		sort.Slice(out, func(i, j int) bool { return lessKey(out[i], out[j]) })
		return out, true
	}
	return nil, false
}

func lessKey(a, b any) bool {
	if x, ok := types.ToFloat64(a); ok {
		if y, ok := types.ToFloat64(b); ok {
			return x < y
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}
