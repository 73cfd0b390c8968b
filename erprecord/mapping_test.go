package erprecord

import "testing"

func TestFieldMappingResolve(t *testing.T) {
	m := FieldMapping{
		"13.0":     {"x": "old_x"},
		AnyVersion: {"y": "old_y"},
	}

	tests := []struct {
		name    string
		field   string
		version string
		want    string
	}{
		{"exact version", "x", "13.0", "old_x"},
		{"other version falls through", "x", "14.0", "x"},
		{"wildcard on exact version", "y", "13.0", "old_y"},
		{"wildcard on other version", "y", "14.0", "old_y"},
		{"unmapped name", "z", "13.0", "z"},
		{"unknown version", "z", "", "z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Resolve(tt.field, tt.version); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.field, tt.version, got, tt.want)
			}
		})
	}
}

func TestFieldMappingExactBeatsWildcard(t *testing.T) {
	m := FieldMapping{}
	m.Set("", "x", "any_x")
	m.Set("13.0", "x", "old_x")

	if got := m.Resolve("x", "13.0"); got != "old_x" {
		t.Errorf("exact rename should win, got %q", got)
	}
	if got := m.Resolve("x", "16.0"); got != "any_x" {
		t.Errorf("wildcard rename should apply, got %q", got)
	}
}

func TestFieldMappingClone(t *testing.T) {
	m := FieldMapping{"13.0": {"x": "old_x"}}
	cp := m.clone()
	cp.Set("13.0", "x", "changed")
	if m.Resolve("x", "13.0") != "old_x" {
		t.Error("clone shares state with the original")
	}
}
