package types

import (
	"encoding/json"
	"math"
)

// Pair is the remote [id, label] form of a single reference
type Pair struct {
	ID    int64
	Label string
}

// ValueKind identifies which member of a Value is set
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueString
	ValuePair
	ValueIDs
	ValueOther
)

// Value is the variant used for raw fields that no schema declares.
// It applies the same shape heuristics as declared references: an
// [int, string] array becomes a Pair and an array of integers becomes
// an id list. Anything else that is not a scalar is kept as ValueOther.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	pair Pair
	ids  []int64
	raw  any
}

// NewValue classifies a raw wire value. The Value keeps its own copy of
// raw.
func NewValue(raw any) Value {
	raw = CloneRaw(raw)
	switch v := raw.(type) {
	case nil:
		return Value{kind: ValueNull}
	case bool:
		return Value{kind: ValueBool, b: v, raw: raw}
	case string:
		return Value{kind: ValueString, s: v, raw: raw}
	case float32, float64:
		f, _ := ToFloat64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return Value{kind: ValueInt, i: int64(f), f: f, raw: raw}
		}
		return Value{kind: ValueFloat, f: f, raw: raw}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Value{kind: ValueInt, i: i, f: float64(i), raw: raw}
		}
		f, _ := v.Float64()
		return Value{kind: ValueFloat, f: f, raw: raw}
	}
	if i, ok := ToInt64(raw); ok {
		return Value{kind: ValueInt, i: i, f: float64(i), raw: raw}
	}
	if p, ok := AsPair(raw); ok {
		return Value{kind: ValuePair, pair: p, raw: raw}
	}
	if ids, ok := AsIDs(raw); ok {
		return Value{kind: ValueIDs, ids: ids, raw: raw}
	}
	return Value{kind: ValueOther, raw: raw}
}

// Kind returns which member of the variant is set
func (v Value) Kind() ValueKind { return v.kind }

// Raw returns the wire value as received
func (v Value) Raw() any { return v.raw }

// IsNull reports whether the raw value was absent (JSON null)
func (v Value) IsNull() bool { return v.kind == ValueNull }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == ValueBool }
func (v Value) Int() (int64, bool) { return v.i, v.kind == ValueInt }
func (v Value) Text() (string, bool) { return v.s, v.kind == ValueString }
func (v Value) Pair() (Pair, bool) { return v.pair, v.kind == ValuePair }
func (v Value) IDs() ([]int64, bool) { return v.ids, v.kind == ValueIDs }

// Float returns the numeric value for both integer and float variants
func (v Value) Float() (float64, bool) {
	return v.f, v.kind == ValueFloat || v.kind == ValueInt
}

// CloneRaw copies a decoded wire value so that the copy shares no map or
// slice with v
func CloneRaw(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if x == nil {
			return x
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = CloneRaw(e)
		}
		return out
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CloneRaw(e)
		}
		return out
	case []int64:
		if x == nil {
			return x
		}
		return append([]int64{}, x...)
	}
	return v
}

// ToInt64 converts the integer representations produced by JSON
// decoders (float64 without fraction, json.Number) and Go integer
// types into an int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		return floatToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// floatToInt64 accepts whole floats inside the int64 range. 2^63 itself
// is out of range; -2^63 is not.
func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

// ToFloat64 converts any numeric representation into a float64
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return 0, false
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// AsPair recognizes the remote [id, label] array
func AsPair(v any) (Pair, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return Pair{}, false
	}
	id, ok := ToInt64(arr[0])
	if !ok {
		return Pair{}, false
	}
	label, ok := arr[1].(string)
	if !ok {
		return Pair{}, false
	}
	return Pair{ID: id, Label: label}, true
}

// AsIDs recognizes a remote list of integer ids. An empty array is an
// empty id list.
func AsIDs(v any) ([]int64, bool) {
	switch arr := v.(type) {
	case []int64:
		return append([]int64(nil), arr...), true
	case []int:
		ids := make([]int64, len(arr))
		for i, n := range arr {
			ids[i] = int64(n)
		}
		return ids, true
	case []any:
		ids := make([]int64, 0, len(arr))
		for _, item := range arr {
			id, ok := ToInt64(item)
			if !ok {
				return nil, false
			}
			ids = append(ids, id)
		}
		return ids, true
	default:
		return nil, false
	}
}
