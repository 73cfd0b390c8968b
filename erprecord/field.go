package erprecord

import (
	"github.com/arthur-debert/erprecord/types"
)

// TypeID is the handle of a record type inside its Registry
type TypeID int

const unresolved TypeID = -1

// Field describes one declared field of a record type.
//
// Reference fields come in up to three projections sharing the same
// remote relation field: the id projection (e.g. "partner_id"), the
// name projection ("partner_name", read-only, single references only)
// and the object projection ("partner"), which a Record resolves lazily.
//
// An alias mirrors another local field. After linking, an alias carries
// the attributes of the field it mirrors and differs only by Name.
type Field struct {
	Name       string
	Kind       types.Kind
	Optional   types.Optional
	AliasOf    string
	Relation   string
	Target     string
	Projection types.Projection
	Many       bool
	Values     []string

	base   string
	target TypeID
}

// Base returns the canonical remote field name before any version
// renaming: the relation for references, the mirrored field's base for
// aliases and the field name otherwise.
func (f *Field) Base() string { return f.base }

// IsRef reports whether the field is any projection of a reference
func (f *Field) IsRef() bool { return f.Kind == types.KindRef }

// ReadOnly reports whether the field is rejected as a write input
func (f *Field) ReadOnly() bool { return f.Projection == types.ProjectName }

// TargetType returns the linked target record type of a reference
func (f *Field) TargetType() TypeID { return f.target }

func (f *Field) clone() *Field {
	c := *f
	c.Values = append([]string(nil), f.Values...)
	return &c
}

// describe returns the kind name used in messages
func (f *Field) describe() string {
	if !f.IsRef() {
		return f.Kind.String()
	}
	if f.Many {
		return "list of " + f.Target + " ids"
	}
	return f.Target + " reference"
}

var idField = &Field{Name: "id", Kind: types.KindInt, base: "id", target: unresolved}
