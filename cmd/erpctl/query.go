package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arthur-debert/erprecord/erprecord"
)

// LogicalOperator connects filter groups
type LogicalOperator string

const (
	OpAnd LogicalOperator = "and"
	OpOr  LogicalOperator = "or"
)

// FilterCondition represents a single filter condition, like 'name ilike azure'.
type FilterCondition struct {
	Field    string
	Operator string
	Value    any
	Negate   bool
}

// FilterGroup represents a set of conditions that are implicitly joined by AND.
type FilterGroup struct {
	Conditions []FilterCondition
}

// Query represents a parsed CLI query with support for logical grouping.
type Query struct {
	// A list of filter groups.
	Groups []FilterGroup
	// A list of logical operators that connect the groups.
	// Example: Groups[0] Operators[0] Groups[1] Operators[1] Groups[2]
	Operators []LogicalOperator
}

var filterOperators = map[string]bool{
	"=": true, "!=": true, "<>": true,
	">": true, ">=": true, "<": true, "<=": true,
	"like": true, "ilike": true, "=like": true, "=ilike": true,
	"not like": true, "not ilike": true,
	"in": true, "not in": true,
	"child_of": true, "parent_of": true,
}

// parseFilters parses filter arguments into a Query. A condition is
// either three arguments (FIELD OP VALUE) or one (FIELD=VALUE,
// FIELD!=VALUE). "and" and "or" start a new group, "not" negates the
// next condition. Groups are combined left to right.
func parseFilters(args []string) (*Query, error) {
	query := &Query{
		Groups:    []FilterGroup{},
		Operators: []LogicalOperator{},
	}
	current := FilterGroup{Conditions: []FilterCondition{}}
	negate := false

	closeGroup := func(op LogicalOperator) error {
		if len(current.Conditions) == 0 {
			return fmt.Errorf("%q must follow a condition", op)
		}
		query.Groups = append(query.Groups, current)
		query.Operators = append(query.Operators, op)
		current = FilterGroup{Conditions: []FilterCondition{}}
		return nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch strings.ToLower(arg) {
		case string(OpAnd), string(OpOr):
			if negate {
				return nil, fmt.Errorf("\"not\" must precede a condition")
			}
			if err := closeGroup(LogicalOperator(strings.ToLower(arg))); err != nil {
				return nil, err
			}
			continue
		case "not":
			negate = !negate
			continue
		}

		var cond FilterCondition
		if field, value, ok := strings.Cut(arg, "="); ok && field != "" {
			op := "="
			if f, neg := strings.CutSuffix(field, "!"); neg {
				field, op = f, "!="
			}
			cond = FilterCondition{Field: field, Operator: op, Value: inferValue(value)}
		} else {
			if i+2 >= len(args) {
				return nil, fmt.Errorf("incomplete condition %q: expected FIELD OPERATOR VALUE", strings.Join(args[i:], " "))
			}
			op := strings.ToLower(args[i+1])
			if !filterOperators[op] {
				return nil, fmt.Errorf("unknown operator %q", args[i+1])
			}
			cond = FilterCondition{Field: arg, Operator: op, Value: filterValue(op, args[i+2])}
			i += 2
		}
		cond.Negate = negate
		negate = false
		current.Conditions = append(current.Conditions, cond)
	}

	if negate {
		return nil, fmt.Errorf("\"not\" must precede a condition")
	}
	if len(current.Conditions) == 0 {
		if len(query.Operators) > 0 {
			return nil, fmt.Errorf("%q must be followed by a condition", query.Operators[len(query.Operators)-1])
		}
		return query, nil
	}
	query.Groups = append(query.Groups, current)
	return query, nil
}

// Domain compiles the query into prefix notation
func (q *Query) Domain() erprecord.Domain {
	if len(q.Groups) == 0 {
		return nil
	}
	var d erprecord.Domain
	for i := len(q.Operators) - 1; i >= 0; i-- {
		if q.Operators[i] == OpOr {
			d = append(d, erprecord.Or)
		} else {
			d = append(d, erprecord.And)
		}
	}
	for _, g := range q.Groups {
		for i := 1; i < len(g.Conditions); i++ {
			d = append(d, erprecord.And)
		}
		for _, c := range g.Conditions {
			if c.Negate {
				d = append(d, erprecord.Not)
			}
			d = append(d, erprecord.C(c.Field, c.Operator, c.Value))
		}
	}
	return d
}

func filterValue(op, raw string) any {
	if op != "in" && op != "not in" {
		return inferValue(raw)
	}
	parts := strings.Split(raw, ",")
	values := make([]any, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, inferValue(p))
		}
	}
	return values
}

// inferValue guesses the type of a filter value typed on the command line
func inferValue(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
