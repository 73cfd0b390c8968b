package erprecord

import (
	"context"
	"fmt"
	"strings"
)

// Operator is a logical prefix token of a domain
type Operator string

const (
	And Operator = "&"
	Or  Operator = "|"
	Not Operator = "!"
)

func (op Operator) arity() int {
	switch op {
	case And, Or:
		return 2
	case Not:
		return 1
	default:
		return 0
	}
}

// Cond is a single (field, operator, value) criterion. Field may be a
// dotted path through references, e.g. "create_user.name".
type Cond struct {
	Field string
	Op    string
	Value any
}

// C builds a Cond
func C(field, op string, value any) Cond {
	return Cond{Field: field, Op: op, Value: value}
}

// Domain is a search filter in prefix notation. Elements are Cond
// values, Operator tokens (or the equivalent strings "&", "|", "!"), or
// three-element []any criteria. Top-level criteria are implicitly
// combined with AND. A nil Domain matches every record.
type Domain []any

// compileDomain translates d into the remote wire form for the
// manager's record type. The output keeps the exact element order and
// operator placement of d.
func (m *Manager) compileDomain(ctx context.Context, d Domain) ([]any, error) {
	out := make([]any, 0, len(d))
	enc := m.encoder(ctx, modeFilter)
	for i, elem := range d {
		switch el := elem.(type) {
		case Operator:
			if el.arity() == 0 {
				return nil, &DomainError{Model: m.schema.model, Index: i, Reason: fmt.Sprintf("unknown operator %q", string(el))}
			}
			out = append(out, string(el))
		case string:
			if Operator(el).arity() == 0 {
				return nil, &DomainError{Model: m.schema.model, Index: i, Reason: fmt.Sprintf("unknown operator %q", el)}
			}
			out = append(out, el)
		case Cond:
			leaf, err := m.compileCond(enc, el)
			if err != nil {
				return nil, err
			}
			out = append(out, leaf)
		case []any:
			cond, ok := condFromSlice(el)
			if !ok {
				return nil, &DomainError{Model: m.schema.model, Index: i, Reason: "criterion must be (field, operator, value)"}
			}
			leaf, err := m.compileCond(enc, cond)
			if err != nil {
				return nil, err
			}
			out = append(out, leaf)
		default:
			return nil, &DomainError{Model: m.schema.model, Index: i, Reason: fmt.Sprintf("unexpected element %T", elem)}
		}
	}
	if err := checkArity(m.schema.model, d); err != nil {
		return nil, err
	}
	return out, nil
}

func condFromSlice(el []any) (Cond, bool) {
	if len(el) != 3 {
		return Cond{}, false
	}
	field, ok1 := el[0].(string)
	op, ok2 := el[1].(string)
	if !ok1 || !ok2 {
		return Cond{}, false
	}
	return Cond{Field: field, Op: op, Value: el[2]}, true
}

// checkArity verifies every prefix operator has enough operands by
// scanning right to left with an operand counter.
func checkArity(model string, d Domain) error {
	operands := 0
	for i := len(d) - 1; i >= 0; i-- {
		var op Operator
		switch el := d[i].(type) {
		case Operator:
			op = el
		case string:
			op = Operator(el)
		default:
			operands++
			continue
		}
		n := op.arity()
		if operands < n {
			return &DomainError{Model: model, Index: i, Reason: fmt.Sprintf("operator %q needs %d operands, found %d", string(op), n, operands)}
		}
		operands -= n - 1
	}
	return nil
}

func (m *Manager) compileCond(enc *encoder, c Cond) ([]any, error) {
	if c.Op == "" {
		return nil, &DomainError{Model: m.schema.model, Reason: fmt.Sprintf("criterion on %q has no operator", c.Field)}
	}
	wire, f, err := m.client.resolvePath(m.schema, c.Field, enc.version)
	if err != nil {
		return nil, err
	}
	value, err := enc.filterValue(f, c.Value)
	if err != nil {
		return nil, err
	}
	return []any{wire, c.Op, value}, nil
}

// resolvePath resolves a dotted field path segment by segment. Each
// segment goes through alias and projection normalization and version
// renaming; every segment but the last must be a reference, whose target
// type resolves the next one.
func (c *Client) resolvePath(s *Schema, path, version string) (string, *Field, error) {
	segments := strings.Split(path, ".")
	wire := make([]string, len(segments))
	var f *Field
	cur := s
	for i, seg := range segments {
		var err error
		if f, err = cur.Lookup(seg); err != nil {
			if fe, ok := err.(*FieldError); ok && len(segments) > 1 {
				fe.Field = path
				fe.Reason = fmt.Sprintf("segment %q is not declared on %s", seg, cur.model)
			}
			return "", nil, err
		}
		wire[i] = cur.WireName(f, version)
		if i == len(segments)-1 {
			break
		}
		if !f.IsRef() {
			return "", nil, &FieldError{Model: s.model, Field: path, Reason: fmt.Sprintf("segment %q is not a reference", seg)}
		}
		next, ok := c.registry.ByID(f.target)
		if !ok {
			return "", nil, &ConfigError{Model: cur.model, Field: seg, Reason: "reference is not linked"}
		}
		cur = next
	}
	return strings.Join(wire, "."), f, nil
}
