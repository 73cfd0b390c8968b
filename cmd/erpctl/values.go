package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/types"
)

// parseAssignments turns FIELD=VALUE arguments into create/update
// values, converting each value to the declared kind of its field
func parseAssignments(s *erprecord.Schema, args []string) (erprecord.Values, error) {
	values := make(erprecord.Values, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected FIELD=VALUE, got %q", arg)
		}
		f, err := s.Lookup(name)
		if err != nil {
			return nil, err
		}
		v, err := parseFieldValue(f, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

// parseFieldValue converts raw to the Go type the value codec expects
// for f. "null" clears a field.
func parseFieldValue(f *erprecord.Field, raw string) (any, error) {
	if strings.EqualFold(raw, "null") {
		return nil, nil
	}
	if f.IsRef() {
		if f.Many {
			return parseIDs(strings.Split(raw, ","))
		}
		if f.ReadOnly() {
			// let the codec report the read-only projection
			return raw, nil
		}
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	}

	switch f.Kind {
	case types.KindBool:
		return strconv.ParseBool(raw)
	case types.KindInt:
		return strconv.ParseInt(raw, 10, 64)
	case types.KindFloat:
		return strconv.ParseFloat(raw, 64)
	case types.KindMap:
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("expected a JSON object: %w", err)
		}
		return m, nil
	}
	return raw, nil
}

// parseIDs parses record ids, ignoring empty entries
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid record id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
