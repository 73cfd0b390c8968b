package types

// FieldSpec declares one field of a record type in a catalog file
type FieldSpec struct {
	// Name is the local field name. For references it is the remote
	// relation field ("partner_id", "tag_ids").
	Name string `yaml:"name" json:"name"`

	// Type is a kind name accepted by ParseKind. Empty for aliases.
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Target is the referenced model for reference types
	Target string `yaml:"target,omitempty" json:"target,omitempty"`

	// Alias names the field this one mirrors; Type must be empty
	Alias string `yaml:"alias,omitempty" json:"alias,omitempty"`

	// Object and Label rename the object and display-name projections
	// of a reference
	Object string `yaml:"object,omitempty" json:"object,omitempty"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`

	// NoObject and NoLabel suppress those projections
	NoObject bool `yaml:"no_object,omitempty" json:"no_object,omitempty"`
	NoLabel  bool `yaml:"no_label,omitempty" json:"no_label,omitempty"`

	// Absent is an optional policy name accepted by ParseOptional
	Absent string `yaml:"absent,omitempty" json:"absent,omitempty"`

	// Values lists the literals of an enumeration
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// IsAlias reports whether the field is declared as an alias
func (f FieldSpec) IsAlias() bool { return f.Alias != "" }

// FamilySpec declares a reusable group of fields
type FamilySpec struct {
	Name   string      `yaml:"name" json:"name"`
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// ModelSpec declares one record type
type ModelSpec struct {
	Model   string      `yaml:"model" json:"model"`
	Include []string    `yaml:"include,omitempty" json:"include,omitempty"`
	Fields  []FieldSpec `yaml:"fields" json:"fields"`

	// Mappings is version -> local name -> remote name. The version "*"
	// applies to every server version.
	Mappings map[string]map[string]string `yaml:"mappings,omitempty" json:"mappings,omitempty"`

	DefaultFields []string `yaml:"default_fields,omitempty" json:"default_fields,omitempty"`
	NameField     string   `yaml:"name_field,omitempty" json:"name_field,omitempty"`
	CodeField     string   `yaml:"code_field,omitempty" json:"code_field,omitempty"`
}

// Catalog is the declarative form of a set of record types
type Catalog struct {
	Families []FamilySpec `yaml:"families,omitempty" json:"families,omitempty"`
	Models   []ModelSpec  `yaml:"models" json:"models"`
}

// Model returns the spec of the named model
func (c *Catalog) Model(name string) (*ModelSpec, bool) {
	for i := range c.Models {
		if c.Models[i].Model == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}
