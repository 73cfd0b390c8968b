package erprecord

import (
	"sort"

	"github.com/arthur-debert/erprecord/types"
)

// Schema is the immutable field table of one record type. Schemas are
// produced by a Registry and shared by every Manager and Record of the
// type.
type Schema struct {
	model     string
	id        TypeID
	fields    map[string]*Field
	order     []string
	mapping   FieldMapping
	defaults  []string
	nameField string
	codeField string
	families  []string
}

// Model returns the remote model name, e.g. "res.partner"
func (s *Schema) Model() string { return s.model }

// ID returns the schema's handle in its registry
func (s *Schema) ID() TypeID { return s.id }

// Mapping returns the version field-mapping table
func (s *Schema) Mapping() FieldMapping { return s.mapping }

// DefaultFields returns the field selection used when a read names none
func (s *Schema) DefaultFields() []string { return append([]string(nil), s.defaults...) }

// NameField returns the local name of the unique name field, if any
func (s *Schema) NameField() string { return s.nameField }

// CodeField returns the local name of the unique code field, if any
func (s *Schema) CodeField() string { return s.codeField }

// Families returns the names of the field families the schema includes
func (s *Schema) Families() []string { return append([]string(nil), s.families...) }

// Fields returns the declared fields in declaration order, without the
// implicit id field.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.fields[name])
	}
	return out
}

// Field returns the descriptor for a local name, including "id"
func (s *Schema) Field(name string) (*Field, bool) {
	if name == "id" {
		return idField, true
	}
	f, ok := s.fields[name]
	return f, ok
}

// Lookup is Field with a FieldError carrying suggestions on a miss
func (s *Schema) Lookup(name string) (*Field, error) {
	if f, ok := s.Field(name); ok {
		return f, nil
	}
	return nil, &FieldError{
		Model:       s.model,
		Field:       name,
		Reason:      "is not declared",
		Suggestions: suggest(name, s.order),
	}
}

// WireName returns the remote name of a field on a server version
func (s *Schema) WireName(f *Field, version string) string {
	return s.mapping.Resolve(f.base, version)
}

// wireFields translates a local field selection into remote names,
// collapsing the projections of one relation into a single entry.
// A nil selection means the schema defaults, and no defaults means all.
func (s *Schema) wireFields(names []string, version string) ([]string, error) {
	if len(names) == 0 {
		names = s.defaults
	}
	if len(names) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		f, err := s.Lookup(name)
		if err != nil {
			return nil, err
		}
		wire := s.WireName(f, version)
		if !seen[wire] {
			seen[wire] = true
			out = append(out, wire)
		}
	}
	return out, nil
}

// projections returns every declared field sharing a canonical name,
// sorted by name.
func (s *Schema) projections(base string) []*Field {
	var out []*Field
	for _, f := range s.fields {
		if f.base == base {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// idProjection returns the field owning a relation's id projection
func (s *Schema) idProjection(base string) *Field {
	for _, f := range s.projections(base) {
		if f.IsRef() && f.Projection == types.ProjectID && f.AliasOf == "" {
			return f
		}
	}
	return nil
}
