package memrpc

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/arthur-debert/erprecord/types"
)

// evaluator matches rows against a domain in prefix notation
type evaluator struct {
	server *Server
}

// matches evaluates expr against row. Top-level terms are ANDed.
func (ev *evaluator) matches(t *table, row map[string]any, expr []any) (bool, error) {
	pos := 0
	result := true
	for pos < len(expr) {
		ok, next, err := ev.term(t, row, expr, pos)
		if err != nil {
			return false, err
		}
		result = result && ok
		pos = next
	}
	return result, nil
}

// mentionsActive reports whether any term of expr filters on active
func mentionsActive(expr []any) bool {
	for _, el := range expr {
		if term, ok := el.([]any); ok && len(term) == 3 && term[0] == "active" {
			return true
		}
	}
	return false
}

// term evaluates the term starting at pos and returns the position
// after it
func (ev *evaluator) term(t *table, row map[string]any, expr []any, pos int) (bool, int, error) {
	if pos >= len(expr) {
		return false, pos, fault("ValueError", "domain ends in the middle of an operator")
	}
	switch el := expr[pos].(type) {
	case string:
		switch el {
		case "!":
			ok, next, err := ev.term(t, row, expr, pos+1)
			return !ok, next, err
		case "&", "|":
			a, next, err := ev.term(t, row, expr, pos+1)
			if err != nil {
				return false, next, err
			}
			b, next, err := ev.term(t, row, expr, next)
			if err != nil {
				return false, next, err
			}
			if el == "&" {
				return a && b, next, nil
			}
			return a || b, next, nil
		}
		return false, pos, fault("ValueError", "invalid domain operator %q", el)
	case []any:
		if len(el) != 3 {
			return false, pos, fault("ValueError", "invalid domain term %v", el)
		}
		path, _ := el[0].(string)
		op, _ := el[1].(string)
		ok, err := ev.leaf(t, row, path, strings.ToLower(op), el[2])
		return ok, pos + 1, err
	}
	return false, pos, fault("ValueError", "invalid domain element %v", expr[pos])
}

// values follows a dotted path from row and returns every value it
// reaches. References contribute their ids; list references fan out.
func (ev *evaluator) values(t *table, row map[string]any, path string) ([]any, error) {
	head, rest, dotted := strings.Cut(path, ".")
	if head == "id" {
		if dotted {
			return nil, fault("ValueError", "invalid field path %q", path)
		}
		return []any{row["id"]}, nil
	}
	c, ok := t.columns[head]
	if !ok {
		return nil, fault("ValueError", "invalid field %q on model %q", head, t.name)
	}
	v := row[head]
	if !dotted {
		if c.Many {
			ids, _ := types.AsIDs(v)
			out := make([]any, len(ids))
			for i, id := range ids {
				out[i] = id
			}
			return out, nil
		}
		if v == nil {
			v = false
		}
		return []any{v}, nil
	}
	if c.Target == "" {
		return nil, fault("ValueError", "field %q on model %q is not a relation", head, t.name)
	}
	target, err := ev.server.table(c.Target)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if c.Many {
		ids, _ = types.AsIDs(v)
	} else if id, ok := types.ToInt64(v); ok && id != 0 {
		ids = []int64{id}
	}
	var out []any
	for _, id := range ids {
		next, ok := target.rows[id]
		if !ok {
			continue
		}
		vals, err := ev.values(target, next, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

func (ev *evaluator) leaf(t *table, row map[string]any, path, op string, expected any) (bool, error) {
	actual, err := ev.values(t, row, path)
	if err != nil {
		return false, err
	}
	negated := map[string]string{"!=": "=", "<>": "=", "not in": "in", "not like": "like", "not ilike": "ilike"}
	if positive, ok := negated[op]; ok {
		match, err := anyMatch(actual, positive, expected)
		return !match, err
	}
	return anyMatch(actual, op, expected)
}

func anyMatch(actual []any, op string, expected any) (bool, error) {
	if len(actual) == 0 {
		actual = []any{false}
	}
	for _, a := range actual {
		ok, err := compareValues(a, op, expected)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// compareValues compares a stored value to a criterion value
func compareValues(actual any, op string, expected any) (bool, error) {
	switch op {
	case "=", "==":
		return equal(actual, expected), nil
	case "in":
		list, ok := expected.([]any)
		if !ok {
			return false, fault("ValueError", "operator %q needs a list, got %v", op, expected)
		}
		for _, e := range list {
			if equal(actual, e) {
				return true, nil
			}
		}
		return false, nil
	case "<", "<=", ">", ">=":
		if isAbsent(actual) || isAbsent(expected) {
			return false, nil
		}
		c, ok := order(actual, expected)
		if !ok {
			return false, nil
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "like", "ilike":
		if isAbsent(actual) {
			return false, nil
		}
		return matchLike(fmt.Sprint(actual), "%"+fmt.Sprint(expected)+"%", op == "ilike")
	case "=like", "=ilike":
		if isAbsent(actual) {
			return false, nil
		}
		return matchLike(fmt.Sprint(actual), fmt.Sprint(expected), op == "=ilike")
	}
	return false, fault("ValueError", "unsupported operator %q", op)
}

func isAbsent(v any) bool {
	b, ok := v.(bool)
	return v == nil || (ok && !b)
}

func equal(a, b any) bool {
	if isAbsent(a) && isAbsent(b) {
		return true
	}
	if x, ok := types.ToFloat64(a); ok {
		y, ok := types.ToFloat64(b)
		return ok && x == y
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// order compares two values of the same kind: numbers numerically,
// strings lexically, booleans false before true
func order(a, b any) (int, bool) {
	if x, ok := types.ToFloat64(a); ok {
		y, ok := types.ToFloat64(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	if x, ok := a.(bool); ok {
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// matchLike implements SQL LIKE: % matches any run, _ one character
func matchLike(actual, pattern string, fold bool) (bool, error) {
	var b strings.Builder
	if fold {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	matched, err := regexp.MatchString(b.String(), actual)
	if err != nil {
		return false, fault("ValueError", "invalid LIKE pattern %q: %v", pattern, err)
	}
	return matched, nil
}

// sortIDs orders ids by a clause such as "name desc, id". Absent values
// sort first; ties fall back to id.
func (s *Server) sortIDs(t *table, ids []int64, clause string) error {
	type key struct {
		field string
		desc  bool
	}
	var keys []key
	for _, term := range strings.Split(clause, ",") {
		parts := strings.Fields(term)
		if len(parts) == 0 {
			continue
		}
		name := parts[0]
		if _, ok := t.columns[name]; !ok && name != "id" {
			return fault("ValueError", "invalid order field %q on model %q", name, t.name)
		}
		keys = append(keys, key{field: name, desc: len(parts) > 1 && strings.EqualFold(parts[1], "desc")})
	}
	sortValue := func(id int64, field string) any {
		v := t.rows[id][field]
		if c := t.columns[field]; c.Target != "" && !c.Many {
			if ref, ok := types.ToInt64(v); ok {
				return ref
			}
		}
		return v
	}
	sort.SliceStable(ids, func(i, j int) bool {
		for _, k := range keys {
			a, b := sortValue(ids[i], k.field), sortValue(ids[j], k.field)
			var c int
			switch {
			case isAbsent(a) && isAbsent(b):
				c = 0
			case isAbsent(a):
				c = -1
			case isAbsent(b):
				c = 1
			default:
				c, _ = order(a, b)
			}
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c < 0
			}
		}
		return ids[i] < ids[j]
	})
	return nil
}
