// Package catalog builds record type registries from declarative YAML
// files.
//
// A catalog lists models and, optionally, field families shared between
// them:
//
//	families:
//	  - name: addressable
//	    fields:
//	      - {name: street, type: char, absent: none}
//	models:
//	  - model: res.partner
//	    include: [addressable, timestamps]
//	    fields:
//	      - {name: name, type: char}
//	      - {name: parent_id, type: many2one, target: res.partner}
//	      - {name: child_ids, type: one2many, target: res.partner, object: children}
//	      - {name: code, alias: ref}
//	    mappings:
//	      "12.0": {list_price: lst_price}
//	    name_field: name
//
// The built-in families of package erprecord (timestamps, archivable)
// are always available to include.
package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/internal/validation"
	"github.com/arthur-debert/erprecord/types"
)

// Parse decodes and validates a catalog document. Unknown keys are
// rejected so typos in field options do not pass silently.
func Parse(r io.Reader) (*types.Catalog, error) {
	var c types.Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if err == io.EOF {
			return nil, &erprecord.ConfigError{Model: "catalog", Reason: "document is empty"}
		}
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := validation.Validate(&c, builtinNames()...); err != nil {
		return nil, &erprecord.ConfigError{Model: "catalog", Reason: err.Error()}
	}
	return &c, nil
}

// Load parses a catalog and returns a linked registry holding its models
func Load(r io.Reader) (*erprecord.Registry, error) {
	c, err := Parse(r)
	if err != nil {
		return nil, err
	}
	reg := erprecord.NewRegistry()
	if err := Define(reg, c); err != nil {
		return nil, err
	}
	if err := reg.Link(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadFile is Load on the contents of path
func LoadFile(path string) (*erprecord.Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Define adds every model of c to reg without linking it, so callers
// can mix catalog models with models declared in code.
func Define(reg *erprecord.Registry, c *types.Catalog) error {
	families := make(map[string]erprecord.Family, len(erprecord.Families)+len(c.Families))
	for name, fam := range erprecord.Families {
		families[name] = fam
	}
	for _, spec := range c.Families {
		fields := spec.Fields
		families[spec.Name] = erprecord.Family{
			Name:    spec.Name,
			Declare: func(b *erprecord.SchemaBuilder) { declareFields(b, fields) },
		}
	}

	for _, m := range c.Models {
		if err := reg.Define(m.Model, modelDeclaration(m, families)); err != nil {
			return err
		}
	}
	return nil
}

func modelDeclaration(m types.ModelSpec, families map[string]erprecord.Family) func(b *erprecord.SchemaBuilder) {
	return func(b *erprecord.SchemaBuilder) {
		declareFields(b, m.Fields)
		for _, name := range m.Include {
			b.Include(families[name])
		}
		versions := make([]string, 0, len(m.Mappings))
		for version := range m.Mappings {
			versions = append(versions, version)
		}
		sort.Strings(versions)
		for _, version := range versions {
			for local, remote := range m.Mappings[version] {
				b.Rename(version, local, remote)
			}
		}
		if len(m.DefaultFields) > 0 {
			b.DefaultFields(m.DefaultFields...)
		}
		if m.NameField != "" {
			b.NameField(m.NameField)
		}
		if m.CodeField != "" {
			b.CodeField(m.CodeField)
		}
	}
}

// declareFields assumes the specs passed validation
func declareFields(b *erprecord.SchemaBuilder, specs []types.FieldSpec) {
	for _, f := range specs {
		if f.IsAlias() {
			b.Alias(f.Name, f.Alias)
			continue
		}
		kind, many, _ := types.ParseKind(f.Type)
		var opts []erprecord.FieldOption
		if f.Absent != "" {
			policy, _ := types.ParseOptional(f.Absent)
			opts = append(opts, erprecord.AbsentAs(policy))
		}

		switch kind {
		case types.KindRef:
			if f.Object != "" {
				opts = append(opts, erprecord.ObjectAs(f.Object))
			}
			if f.NoObject {
				opts = append(opts, erprecord.NoObject())
			}
			if many {
				b.ToMany(f.Name, f.Target, opts...)
				continue
			}
			if f.Label != "" {
				opts = append(opts, erprecord.LabelAs(f.Label))
			}
			if f.NoLabel {
				opts = append(opts, erprecord.NoLabel())
			}
			b.Many2One(f.Name, f.Target, opts...)
		case types.KindEnum:
			b.Enum(f.Name, f.Values, opts...)
		default:
			b.Field(f.Name, kind, opts...)
		}
	}
}

func builtinNames() []string {
	names := make([]string, 0, len(erprecord.Families))
	for name := range erprecord.Families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
