package types

import (
	"fmt"
	"strings"
)

// Kind is the declared type of a record field
type Kind int

const (
	// KindInvalid is the zero Kind; schemas using it fail at registration
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindDatetime
	// KindEnum is a string restricted (by declaration only) to a set of literals
	KindEnum
	// KindMap is a nested mapping passed through verbatim
	KindMap
	// KindRef is a reference to another record type
	KindRef
)

var kindNames = map[Kind]string{
	KindBool:     "boolean",
	KindInt:      "integer",
	KindFloat:    "float",
	KindString:   "string",
	KindDate:     "date",
	KindDatetime: "datetime",
	KindEnum:     "enumeration",
	KindMap:      "mapping",
	KindRef:      "reference",
}

// String returns the string representation of the Kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the declarable kinds
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// kindAliases maps the names accepted in catalog files to kinds.
// Reference spellings are resolved by ParseKind together with their cardinality.
var kindAliases = map[string]Kind{
	"boolean":     KindBool,
	"bool":        KindBool,
	"integer":     KindInt,
	"int":         KindInt,
	"float":       KindFloat,
	"monetary":    KindFloat,
	"string":      KindString,
	"char":        KindString,
	"text":        KindString,
	"html":        KindString,
	"date":        KindDate,
	"datetime":    KindDatetime,
	"enumeration": KindEnum,
	"enum":        KindEnum,
	"selection":   KindEnum,
	"mapping":     KindMap,
	"map":         KindMap,
	"json":        KindMap,
	"many2one":    KindRef,
	"one2many":    KindRef,
	"many2many":   KindRef,
	"reference":   KindRef,
}

// ParseKind converts a declared type name into a Kind. For reference
// spellings many reports whether the reference has list cardinality.
func ParseKind(name string) (kind Kind, many bool, err error) {
	n := strings.ToLower(strings.TrimSpace(name))
	kind, ok := kindAliases[n]
	if !ok {
		return KindInvalid, false, fmt.Errorf("unsupported field type %q", name)
	}
	return kind, n == "one2many" || n == "many2many", nil
}

// Optional describes how the remote "no value" sentinel (false) decodes
type Optional int

const (
	// Required fields are expected to carry a value of their kind; a
	// remote false or null is passed through unchanged
	Required Optional = iota
	// OptionalFalse keeps the remote false sentinel as false
	OptionalFalse
	// OptionalNone decodes the remote false sentinel to nil
	OptionalNone
)

// String returns the string representation of the Optional policy
func (o Optional) String() string {
	switch o {
	case Required:
		return "required"
	case OptionalFalse:
		return "false"
	case OptionalNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseOptional converts a policy name into an Optional
func ParseOptional(name string) (Optional, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "required":
		return Required, nil
	case "false":
		return OptionalFalse, nil
	case "none", "null", "nil":
		return OptionalNone, nil
	default:
		return Required, fmt.Errorf("unsupported optional policy %q", name)
	}
}

// Projection selects which face of a reference a field surfaces
type Projection int

const (
	// ProjectNone is used by non-reference fields
	ProjectNone Projection = iota
	// ProjectID surfaces the referenced id (or ids)
	ProjectID
	// ProjectName surfaces the display label of a single reference; read-only
	ProjectName
	// ProjectObject surfaces the lazily resolved record (or records)
	ProjectObject
)

// String returns the string representation of the Projection
func (p Projection) String() string {
	switch p {
	case ProjectNone:
		return "none"
	case ProjectID:
		return "id"
	case ProjectName:
		return "name"
	case ProjectObject:
		return "object"
	default:
		return "unknown"
	}
}
