package types

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToInt64(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		want   int64
		wantOK bool
	}{
		{"int", 7, 7, true},
		{"uint64 in range", uint64(math.MaxInt64), math.MaxInt64, true},
		{"uint64 overflow", uint64(math.MaxUint64), 0, false},
		{"whole float", 42.0, 42, true},
		{"negative whole float", -3.0, -3, true},
		{"fraction", 4.2, 0, false},
		{"float32", float32(8), 8, true},
		{"float above range", 1e300, 0, false},
		{"float below range", -1e300, 0, false},
		{"two to the 63", math.Exp2(63), 0, false},
		{"minus two to the 63", -math.Exp2(63), math.MinInt64, true},
		{"infinity", math.Inf(1), 0, false},
		{"nan", math.NaN(), 0, false},
		{"float32 above range", float32(1e30), 0, false},
		{"json number", json.Number("17"), 17, true},
		{"json number fraction", json.Number("1.5"), 0, false},
		{"string", "17", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToInt64(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ToInt64(%v) = %d, %v; want %d, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCloneRaw(t *testing.T) {
	orig := map[string]any{
		"tags":  []any{"a", map[string]any{"k": "v"}},
		"ids":   []int64{1, 2},
		"count": json.Number("3"),
	}
	want := map[string]any{
		"tags":  []any{"a", map[string]any{"k": "v"}},
		"ids":   []int64{1, 2},
		"count": json.Number("3"),
	}

	clone := CloneRaw(orig).(map[string]any)
	clone["count"] = json.Number("4")
	clone["tags"].([]any)[0] = "b"
	clone["tags"].([]any)[1].(map[string]any)["k"] = "w"
	clone["ids"].([]int64)[0] = 9

	if diff := cmp.Diff(want, orig); diff != "" {
		t.Errorf("original changed through the clone (-want +got):\n%s", diff)
	}
	if CloneRaw(nil) != nil {
		t.Error("expected nil to clone to nil")
	}
}

func TestNewValueKeepsCopy(t *testing.T) {
	raw := []any{json.Number("5"), json.Number("6")}
	v := NewValue(raw)
	raw[0] = json.Number("7")

	ids, ok := v.IDs()
	if !ok {
		t.Fatalf("expected an id list, got kind %v", v.Kind())
	}
	if diff := cmp.Diff([]int64{5, 6}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{json.Number("5"), json.Number("6")}, v.Raw()); diff != "" {
		t.Errorf("raw mismatch (-want +got):\n%s", diff)
	}
}
