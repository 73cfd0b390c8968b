package erprecord

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/arthur-debert/erprecord/types"
)

// Registry holds the record types of one catalog. Building a catalog
// is two-phase: Define records each shape with reference targets named
// by model, then Link resolves every target to a TypeID and checks the
// cross-field invariants. A linked registry is read-only.
type Registry struct {
	mu      sync.RWMutex
	schemas []*Schema
	byModel map[string]TypeID
	linked  bool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byModel: make(map[string]TypeID)}
}

// Define declares the record type for model. Declaration errors are
// returned immediately as configuration errors.
func (r *Registry) Define(model string, declare func(b *SchemaBuilder)) error {
	if model == "" {
		return &ConfigError{Model: "<empty>", Reason: "model name cannot be empty"}
	}
	b := newSchemaBuilder(model)
	if declare != nil {
		declare(b)
	}
	if len(b.errs) > 0 {
		return errors.Join(b.errs...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linked {
		return &ConfigError{Model: model, Reason: "registry is already linked"}
	}
	if _, exists := r.byModel[model]; exists {
		return &ConfigError{Model: model, Reason: "model defined twice"}
	}
	b.schema.id = TypeID(len(r.schemas))
	r.schemas = append(r.schemas, b.schema)
	r.byModel[model] = b.schema.id
	return nil
}

// MustDefine is Define that panics on error, for package-level catalogs
func (r *Registry) MustDefine(model string, declare func(b *SchemaBuilder)) {
	if err := r.Define(model, declare); err != nil {
		panic(err)
	}
}

// Link resolves reference targets and aliases for every defined type.
// Linking an already linked registry is a no-op.
func (r *Registry) Link() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linked {
		return nil
	}
	var errs []error
	for _, s := range r.schemas {
		errs = append(errs, r.linkSchema(s)...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	r.linked = true
	return nil
}

// Linked reports whether Link succeeded
func (r *Registry) Linked() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.linked
}

// Schema returns the record type for model
func (r *Registry) Schema(model string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byModel[model]
	if !ok {
		return nil, false
	}
	return r.schemas[id], true
}

// ByID returns the record type for a handle
func (r *Registry) ByID(id TypeID) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || int(id) >= len(r.schemas) {
		return nil, false
	}
	return r.schemas[id], true
}

// Models returns the defined model names, sorted
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byModel))
	for model := range r.byModel {
		out = append(out, model)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) linkSchema(s *Schema) []error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Model: s.model, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	// Reference targets first, so aliases copy linked descriptors.
	for _, name := range s.order {
		f := s.fields[name]
		if !f.IsRef() {
			continue
		}
		id, ok := r.byModel[f.Target]
		if !ok {
			fail(name, "reference target %q is not defined", f.Target)
			continue
		}
		f.target = id
	}

	for _, name := range s.order {
		f := s.fields[name]
		if f.AliasOf == "" {
			continue
		}
		target, err := resolveAlias(s, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		linked := target.clone()
		linked.Name = f.Name
		linked.AliasOf = f.AliasOf
		s.fields[name] = linked
	}

	errs = append(errs, checkRelations(s)...)

	for _, name := range s.defaults {
		if _, ok := s.Field(name); !ok {
			fail(name, "default field is not declared")
		}
	}
	for _, name := range []string{s.nameField, s.codeField} {
		if name == "" {
			continue
		}
		f, ok := s.Field(name)
		switch {
		case !ok:
			fail(name, "lookup field is not declared")
		case f.Kind != types.KindString && f.Kind != types.KindEnum:
			fail(name, "lookup field must be a string, got %s", f.Kind)
		}
	}

	bases := make(map[string]bool, len(s.fields)+1)
	bases["id"] = true
	for _, f := range s.fields {
		bases[f.base] = true
	}
	for version, renames := range s.mapping {
		for name := range renames {
			if !bases[name] {
				fail(name, "rename for version %q names no declared field", version)
			}
		}
	}
	return errs
}

// resolveAlias follows an alias chain to a declared field
func resolveAlias(s *Schema, f *Field) (*Field, error) {
	seen := map[string]bool{f.Name: true}
	cur := f
	for cur.AliasOf != "" {
		next, ok := s.fields[cur.AliasOf]
		if !ok {
			return nil, &ConfigError{Model: s.model, Field: f.Name, Reason: fmt.Sprintf("alias of undeclared field %q", cur.AliasOf)}
		}
		if seen[next.Name] {
			return nil, &ConfigError{Model: s.model, Field: f.Name, Reason: "alias cycle"}
		}
		seen[next.Name] = true
		cur = next
	}
	return cur, nil
}

// checkRelations enforces that each relation has exactly one id
// projection owner and that every projection of it agrees on target and
// cardinality. A scalar field may not reuse a relation's name.
func checkRelations(s *Schema) []error {
	var errs []error
	type relation struct {
		owners  int
		target  string
		many    bool
		scalars []string
	}
	relations := make(map[string]*relation)
	for _, name := range s.order {
		f := s.fields[name]
		if !f.IsRef() {
			continue
		}
		rel, ok := relations[f.base]
		if !ok {
			rel = &relation{target: f.Target, many: f.Many}
			relations[f.base] = rel
		}
		if f.Target != rel.target || f.Many != rel.many {
			errs = append(errs, &ConfigError{Model: s.model, Field: name,
				Reason: fmt.Sprintf("projection of %q disagrees on target or cardinality", f.base)})
		}
		if f.Projection == types.ProjectID && f.AliasOf == "" {
			rel.owners++
		}
		if f.Projection == types.ProjectName && f.Many {
			errs = append(errs, &ConfigError{Model: s.model, Field: name, Reason: "list references have no name projection"})
		}
	}
	for _, name := range s.order {
		f := s.fields[name]
		if rel, ok := relations[f.base]; ok && !f.IsRef() {
			rel.scalars = append(rel.scalars, name)
		}
	}
	bases := make([]string, 0, len(relations))
	for base := range relations {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for _, base := range bases {
		rel := relations[base]
		if rel.owners != 1 {
			errs = append(errs, &ConfigError{Model: s.model, Field: base,
				Reason: fmt.Sprintf("relation needs exactly one id projection, found %d", rel.owners)})
		}
		for _, name := range rel.scalars {
			errs = append(errs, &ConfigError{Model: s.model, Field: name,
				Reason: fmt.Sprintf("scalar field collides with relation %q", base)})
		}
	}
	return errs
}
