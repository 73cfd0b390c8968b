package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/erprecord/erprecord"
)

// CLIError represents a user-friendly CLI error with context and suggestions
type CLIError struct {
	Operation   string   // The operation that failed (e.g., "search", "create")
	Cause       string   // The underlying cause (e.g., "record not found")
	Suggestions []string // Helpful suggestions for the user
	Underlying  error    // Original error for debugging
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}

	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	} else if e.Underlying != nil {
		msg.WriteString(fmt.Sprintf(": %v", e.Underlying))
	}

	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return msg.String()
}

// Unwrap returns the underlying error for error chain compatibility
func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// explain wraps errors from the record layer with hints for the user.
// Other errors are returned unchanged.
func explain(operation string, err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var fieldErr *erprecord.FieldError
	if errors.As(err, &fieldErr) {
		out := &CLIError{Operation: operation, Cause: fieldErr.Error(), Underlying: err}
		if len(fieldErr.Suggestions) == 0 {
			out.Suggestions = []string{fmt.Sprintf("run 'erpctl types %s' to list its fields", fieldErr.Model)}
		}
		return out
	}

	switch {
	case errors.Is(err, erprecord.ErrNotFound):
		return &CLIError{Operation: operation, Cause: err.Error(), Underlying: err,
			Suggestions: []string{"check the id, or search for the record first"}}
	case errors.Is(err, erprecord.ErrValue), errors.Is(err, erprecord.ErrInvalidDomain):
		return &CLIError{Operation: operation, Cause: err.Error(), Underlying: err}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
