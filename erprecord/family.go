package erprecord

import "github.com/arthur-debert/erprecord/types"

// Family is a named group of fields that several record types share.
// A schema includes a family with SchemaBuilder.Include; the fields are
// merged into the schema at definition time.
type Family struct {
	Name    string
	Declare func(b *SchemaBuilder)
}

// Timestamps holds the audit fields every remote model carries. The
// user references target "res.users", which must be defined in the same
// registry.
var Timestamps = Family{
	Name: "timestamps",
	Declare: func(b *SchemaBuilder) {
		b.Datetime("create_date", AbsentAs(types.OptionalNone))
		b.Datetime("write_date", AbsentAs(types.OptionalNone))
		b.Many2One("create_uid", "res.users", ObjectAs("create_user"), LabelAs("create_user_name"))
		b.Many2One("write_uid", "res.users", ObjectAs("write_user"), LabelAs("write_user_name"))
	},
}

// Archivable holds the active flag of models supporting archiving
var Archivable = Family{
	Name: "archivable",
	Declare: func(b *SchemaBuilder) {
		b.Bool("active")
	},
}

// Families lists the built-in families by name
var Families = map[string]Family{
	Timestamps.Name: Timestamps,
	Archivable.Name: Archivable,
}
