package erprecord

import (
	"errors"
	"testing"
)

func TestCheckArity(t *testing.T) {
	leaf := C("name", "=", "x")
	tests := []struct {
		name   string
		domain Domain
		ok     bool
	}{
		{"empty", Domain{}, true},
		{"implicit and", Domain{leaf, leaf, leaf}, true},
		{"or", Domain{Or, leaf, leaf}, true},
		{"nested", Domain{And, Or, leaf, leaf, Not, leaf}, true},
		{"string operators", Domain{"|", leaf, "!", leaf}, true},
		{"mixed top level", Domain{leaf, "|", leaf, leaf}, true},
		{"missing operand", Domain{Or, leaf}, false},
		{"dangling not", Domain{leaf, Not}, false},
		{"operators only", Domain{And, Or}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkArity("test.model", tt.domain)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidDomain) {
				t.Fatalf("expected ErrInvalidDomain, got %v", err)
			}
		})
	}
}

func TestCondFromSlice(t *testing.T) {
	if _, ok := condFromSlice([]any{"a", "="}); ok {
		t.Error("two elements accepted")
	}
	if _, ok := condFromSlice([]any{1, "=", 2}); ok {
		t.Error("non-string field accepted")
	}
	c, ok := condFromSlice([]any{"a", "in", []int{1}})
	if !ok || c.Field != "a" || c.Op != "in" {
		t.Errorf("unexpected cond %+v", c)
	}
}
