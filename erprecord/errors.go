package erprecord

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds added by this layer. Errors from the Session are returned
// unchanged and never match any of these.
var (
	ErrConfig          = errors.New("configuration error")
	ErrFieldResolution = errors.New("field resolution error")
	ErrReadOnlyField   = errors.New("field not valid as input")
	ErrNotFound        = errors.New("records not found")
	ErrMultipleFound   = errors.New("multiple records found")
	ErrInvalidDomain   = errors.New("invalid domain")
	ErrValue           = errors.New("invalid field value")
)

// ConfigError reports a schema declaration that cannot be used
type ConfigError struct {
	Model  string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("configuration error: %s.%s: %s", e.Model, e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Model, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// FieldError reports a field name that does not resolve for a record
// type, or a field used where it is not allowed.
type FieldError struct {
	Model       string
	Field       string
	Reason      string
	Suggestions []string
	readOnly    bool
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s: field %q %s", e.Model, e.Field, e.Reason)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(", did you mean one of: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

func (e *FieldError) Is(target error) bool {
	if e.readOnly {
		return target == ErrReadOnlyField
	}
	return target == ErrFieldResolution
}

// NotFoundError reports ids, a name or a code that matched no record
type NotFoundError struct {
	Model string
	IDs   []int64
	Field string
	Value string
}

func (e *NotFoundError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: no record with %s %q", e.Model, e.Field, e.Value)
	}
	return fmt.Sprintf("%s: records not found: %v", e.Model, e.IDs)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MultipleFoundError reports a lookup on a field expected to be unique
// that matched more than one record.
type MultipleFoundError struct {
	Model string
	Field string
	Value string
	IDs   []int64
}

func (e *MultipleFoundError) Error() string {
	return fmt.Sprintf("%s: multiple records found with %s %q: %v", e.Model, e.Field, e.Value, e.IDs)
}

func (e *MultipleFoundError) Is(target error) bool { return target == ErrMultipleFound }

// DomainError reports a structurally invalid filter expression
type DomainError struct {
	Model  string
	Index  int
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: invalid domain at element %d: %s", e.Model, e.Index, e.Reason)
}

func (e *DomainError) Is(target error) bool { return target == ErrInvalidDomain }

// ValueError reports a value that cannot be coerced to or from its
// field's declared type.
type ValueError struct {
	Model string
	Field string
	Value any
	Want  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s.%s: cannot use %T(%v) as %s", e.Model, e.Field, e.Value, e.Value, e.Want)
}

func (e *ValueError) Is(target error) bool { return target == ErrValue }

// suggest returns the candidates that contain name or are contained in it
func suggest(name string, candidates []string) []string {
	lower := strings.ToLower(name)
	var out []string
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lc, lower) || strings.Contains(lower, lc) {
			out = append(out, c)
		}
	}
	return out
}
