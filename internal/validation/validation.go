package validation

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/erprecord/types"
)

// Validate checks a catalog for consistency before it is turned into
// schemas. known lists family names supplied outside the catalog.
// Reference targets are not checked here; linking the registry does
// that once every model is defined.
func Validate(c *types.Catalog, known ...string) error {
	if len(c.Models) == 0 {
		return fmt.Errorf("catalog must declare at least one model")
	}

	families := make(map[string]bool)
	for _, name := range known {
		families[name] = true
	}
	for _, fam := range c.Families {
		if fam.Name == "" {
			return fmt.Errorf("family name cannot be empty")
		}
		if families[fam.Name] {
			return fmt.Errorf("duplicate family name: %s", fam.Name)
		}
		families[fam.Name] = true
		if err := validateFields("family "+fam.Name, fam.Fields); err != nil {
			return err
		}
	}

	seen := make(map[string]bool)
	for _, m := range c.Models {
		if !IsValidModelName(m.Model) {
			return fmt.Errorf("invalid model name %q", m.Model)
		}
		if seen[m.Model] {
			return fmt.Errorf("duplicate model name: %s", m.Model)
		}
		seen[m.Model] = true

		for _, inc := range m.Include {
			if !families[inc] {
				return fmt.Errorf("model %s: unknown family %q", m.Model, inc)
			}
		}
		if err := validateFields("model "+m.Model, m.Fields); err != nil {
			return err
		}
		if err := validateMappings(m); err != nil {
			return err
		}
	}
	return nil
}

func validateFields(owner string, fields []types.FieldSpec) error {
	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("%s: field name cannot be empty", owner)
		}
		if !IsValidFieldName(f.Name) {
			return fmt.Errorf("%s: invalid field name %q", owner, f.Name)
		}
		if IsReservedFieldName(f.Name) {
			return fmt.Errorf("%s: '%s' is a reserved field name", owner, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("%s: duplicate field name: %s", owner, f.Name)
		}
		seen[f.Name] = true

		if f.IsAlias() {
			if f.Type != "" {
				return fmt.Errorf("%s: alias %s cannot declare a type", owner, f.Name)
			}
			continue
		}
		if err := validateField(owner, f); err != nil {
			return err
		}
	}
	return nil
}

func validateField(owner string, f types.FieldSpec) error {
	kind, many, err := types.ParseKind(f.Type)
	if err != nil {
		return fmt.Errorf("%s: field %s: %w", owner, f.Name, err)
	}
	if _, err := types.ParseOptional(f.Absent); err != nil {
		return fmt.Errorf("%s: field %s: %w", owner, f.Name, err)
	}

	if kind == types.KindRef {
		if f.Target == "" {
			return fmt.Errorf("%s: reference %s must specify a target", owner, f.Name)
		}
		if !IsValidModelName(f.Target) {
			return fmt.Errorf("%s: reference %s: invalid target %q", owner, f.Name, f.Target)
		}
		if many && f.Label != "" {
			return fmt.Errorf("%s: list reference %s has no label projection", owner, f.Name)
		}
		for _, proj := range []string{f.Object, f.Label} {
			if proj != "" && !IsValidFieldName(proj) {
				return fmt.Errorf("%s: reference %s: invalid projection name %q", owner, f.Name, proj)
			}
		}
	} else if f.Target != "" || f.Object != "" || f.Label != "" {
		return fmt.Errorf("%s: field %s is not a reference", owner, f.Name)
	}

	if kind != types.KindEnum {
		if len(f.Values) > 0 {
			return fmt.Errorf("%s: field %s: only enumerations have values", owner, f.Name)
		}
		return nil
	}
	values := make(map[string]bool)
	for _, v := range f.Values {
		if v == "" {
			return fmt.Errorf("%s: field %s: values cannot be empty", owner, f.Name)
		}
		if values[v] {
			return fmt.Errorf("%s: field %s: duplicate value '%s'", owner, f.Name, v)
		}
		values[v] = true
	}
	return nil
}

func validateMappings(m types.ModelSpec) error {
	for version, names := range m.Mappings {
		if strings.TrimSpace(version) == "" {
			return fmt.Errorf("model %s: mapping version cannot be empty", m.Model)
		}
		for local, remote := range names {
			if !IsValidFieldName(local) || !IsValidFieldName(remote) {
				return fmt.Errorf("model %s: invalid mapping %q -> %q for version %s", m.Model, local, remote, version)
			}
		}
	}
	return nil
}

// IsReservedFieldName checks if a field name is managed by the client
func IsReservedFieldName(name string) bool {
	return strings.ToLower(name) == "id"
}

// IsValidFieldName checks that name is a lowercase identifier usable
// in a domain path: letters, digits and underscores, not starting with
// a digit
func IsValidFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// IsValidModelName checks a dotted model name such as "res.partner"
func IsValidModelName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !IsValidFieldName(part) {
			return false
		}
	}
	return true
}
