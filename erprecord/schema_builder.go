package erprecord

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/erprecord/types"
)

// FieldOption adjusts a field declared through a SchemaBuilder
type FieldOption func(*fieldSpec)

type fieldSpec struct {
	optional    types.Optional
	optionalSet bool
	object      string
	label       string
	noObject    bool
	noLabel     bool
}

// AbsentAs sets how the remote false sentinel decodes for the field
func AbsentAs(policy types.Optional) FieldOption {
	return func(s *fieldSpec) {
		s.optional = policy
		s.optionalSet = true
	}
}

// ObjectAs names the object projection of a reference
func ObjectAs(name string) FieldOption {
	return func(s *fieldSpec) { s.object = name }
}

// LabelAs names the display-name projection of a single reference
func LabelAs(name string) FieldOption {
	return func(s *fieldSpec) { s.label = name }
}

// NoObject suppresses the object projection of a reference
func NoObject() FieldOption {
	return func(s *fieldSpec) { s.noObject = true }
}

// NoLabel suppresses the display-name projection of a single reference
func NoLabel() FieldOption {
	return func(s *fieldSpec) { s.noLabel = true }
}

// SchemaBuilder declares the shape of one record type. Reference
// targets are recorded by model name only; the Registry links them once
// every record type is defined, so a schema may refer to itself or to
// types defined later.
//
// Declaration problems are collected and reported by Registry.Define.
type SchemaBuilder struct {
	schema *Schema
	errs   []error
}

func newSchemaBuilder(model string) *SchemaBuilder {
	return &SchemaBuilder{schema: &Schema{
		model:   model,
		id:      unresolved,
		fields:  make(map[string]*Field),
		mapping: make(FieldMapping),
	}}
}

func (b *SchemaBuilder) fail(field, format string, args ...any) {
	b.errs = append(b.errs, &ConfigError{Model: b.schema.model, Field: field, Reason: fmt.Sprintf(format, args...)})
}

func (b *SchemaBuilder) add(f *Field) {
	switch {
	case f.Name == "":
		b.fail("", "field name cannot be empty")
		return
	case f.Name == "id":
		b.fail(f.Name, "\"id\" is implicit and cannot be declared")
		return
	case strings.Contains(f.Name, "."):
		b.fail(f.Name, "field name cannot contain '.'")
		return
	}
	if _, exists := b.schema.fields[f.Name]; exists {
		b.fail(f.Name, "duplicate field name")
		return
	}
	f.target = unresolved
	if f.base == "" {
		f.base = f.Name
	}
	b.schema.fields[f.Name] = f
	b.schema.order = append(b.schema.order, f.Name)
}

func scalarSpec(opts []FieldOption) fieldSpec {
	var spec fieldSpec
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

// Field declares a scalar field of the given kind
func (b *SchemaBuilder) Field(name string, kind types.Kind, opts ...FieldOption) *SchemaBuilder {
	if !kind.Valid() || kind == types.KindRef {
		b.fail(name, "field type %s cannot be declared as a scalar", kind)
		return b
	}
	spec := scalarSpec(opts)
	b.add(&Field{Name: name, Kind: kind, Optional: spec.optional})
	return b
}

func (b *SchemaBuilder) Bool(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindBool, opts...)
}

func (b *SchemaBuilder) Int(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindInt, opts...)
}

func (b *SchemaBuilder) Float(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindFloat, opts...)
}

func (b *SchemaBuilder) String(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindString, opts...)
}

func (b *SchemaBuilder) Date(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindDate, opts...)
}

func (b *SchemaBuilder) Datetime(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindDatetime, opts...)
}

func (b *SchemaBuilder) Map(name string, opts ...FieldOption) *SchemaBuilder {
	return b.Field(name, types.KindMap, opts...)
}

// Enum declares a string field documented to hold one of values.
// Decoding does not check membership.
func (b *SchemaBuilder) Enum(name string, values []string, opts ...FieldOption) *SchemaBuilder {
	spec := scalarSpec(opts)
	b.add(&Field{Name: name, Kind: types.KindEnum, Optional: spec.optional, Values: append([]string(nil), values...)})
	return b
}

// Many2One declares a single reference stored in the remote relation
// field. The id projection is named after the relation. For relations
// ending in "_id" the object projection defaults to the stem ("partner")
// and the name projection to stem + "_name"; other relations get them
// only through ObjectAs and LabelAs.
//
// Single references decode a missing value to nil unless AbsentAs says
// otherwise.
func (b *SchemaBuilder) Many2One(relation, target string, opts ...FieldOption) *SchemaBuilder {
	spec := fieldSpec{optional: types.OptionalNone}
	for _, opt := range opts {
		opt(&spec)
	}
	stem, hasStem := strings.CutSuffix(relation, "_id")
	object, label := spec.object, spec.label
	if object == "" && hasStem {
		object = stem
	}
	if label == "" && hasStem {
		label = stem + "_name"
	}
	b.declareRef(relation, target, false, spec.optional, types.ProjectID, relation)
	if object != "" && !spec.noObject {
		b.declareRef(relation, target, false, spec.optional, types.ProjectObject, object)
	}
	if label != "" && !spec.noLabel {
		b.declareRef(relation, target, false, spec.optional, types.ProjectName, label)
	}
	return b
}

// ToMany declares a list reference (one2many or many2many). Relations
// ending in "_ids" get the object projection stem + "s" by default.
func (b *SchemaBuilder) ToMany(relation, target string, opts ...FieldOption) *SchemaBuilder {
	spec := scalarSpec(opts)
	if spec.label != "" {
		b.fail(spec.label, "list references have no name projection")
	}
	object := spec.object
	if stem, ok := strings.CutSuffix(relation, "_ids"); ok && object == "" {
		object = stem + "s"
	}
	b.declareRef(relation, target, true, types.Required, types.ProjectID, relation)
	if object != "" && !spec.noObject {
		b.declareRef(relation, target, true, types.Required, types.ProjectObject, object)
	}
	return b
}

func (b *SchemaBuilder) declareRef(relation, target string, many bool, optional types.Optional, proj types.Projection, name string) {
	if relation == "" || target == "" {
		b.fail(name, "reference needs a relation field and a target model")
		return
	}
	b.add(&Field{
		Name:       name,
		Kind:       types.KindRef,
		Optional:   optional,
		Relation:   relation,
		Target:     target,
		Projection: proj,
		Many:       many,
		base:       relation,
	})
}

// Alias declares name as another local name for field of. The alias is
// accepted wherever of is: reads, filters and write inputs.
func (b *SchemaBuilder) Alias(name, of string) *SchemaBuilder {
	if of == "" {
		b.fail(name, "alias target cannot be empty")
		return b
	}
	b.add(&Field{Name: name, AliasOf: of})
	return b
}

// Rename maps a canonical field name to its remote name on version.
// Use AnyVersion for renames that hold on every version.
func (b *SchemaBuilder) Rename(version, name, remote string) *SchemaBuilder {
	b.schema.mapping.Set(version, name, remote)
	return b
}

// Include merges the fields of a family. Including a family twice is a
// no-op.
func (b *SchemaBuilder) Include(f Family) *SchemaBuilder {
	for _, name := range b.schema.families {
		if name == f.Name {
			return b
		}
	}
	b.schema.families = append(b.schema.families, f.Name)
	if f.Declare != nil {
		f.Declare(b)
	}
	return b
}

// DefaultFields sets the selection used when a read names no fields
func (b *SchemaBuilder) DefaultFields(names ...string) *SchemaBuilder {
	b.schema.defaults = append([]string(nil), names...)
	return b
}

// NameField marks the field looked up by Manager.GetByName
func (b *SchemaBuilder) NameField(name string) *SchemaBuilder {
	b.schema.nameField = name
	return b
}

// CodeField marks the field looked up by Manager.GetByCode
func (b *SchemaBuilder) CodeField(name string) *SchemaBuilder {
	b.schema.codeField = name
	return b
}
