package testutil

import (
	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/types"
)

// Registry returns a fresh, unlinked registry describing the universe
// models. Each call builds a new one so tests may add their own types
// before linking.
func Registry() *erprecord.Registry {
	reg := erprecord.NewRegistry()

	reg.MustDefine("res.users", func(b *erprecord.SchemaBuilder) {
		b.String("name").
			String("login").
			Include(erprecord.Archivable).
			Include(erprecord.Timestamps).
			NameField("name").
			CodeField("login")
	})

	reg.MustDefine("res.country", func(b *erprecord.SchemaBuilder) {
		b.String("name").String("code").NameField("name").CodeField("code")
	})

	reg.MustDefine("res.partner", func(b *erprecord.SchemaBuilder) {
		b.String("name").
			String("ref", erprecord.AbsentAs(types.OptionalNone)).
			String("email", erprecord.AbsentAs(types.OptionalFalse)).
			Bool("is_company").
			Enum("company_type", []string{"person", "company"}).
			Float("credit").
			Date("birthday", erprecord.AbsentAs(types.OptionalNone)).
			Map("metadata", erprecord.AbsentAs(types.OptionalNone)).
			Many2One("parent_id", "res.partner").
			ToMany("child_ids", "res.partner", erprecord.ObjectAs("children")).
			Many2One("country_id", "res.country").
			Many2One("user_id", "res.users", erprecord.ObjectAs("salesperson"), erprecord.LabelAs("salesperson_name")).
			Alias("code", "ref").
			Alias("company", "is_company").
			Include(erprecord.Archivable).
			Include(erprecord.Timestamps).
			DefaultFields("name", "ref", "email", "parent_id", "country_id").
			NameField("name").
			CodeField("ref")
	})

	reg.MustDefine("product.tag", func(b *erprecord.SchemaBuilder) {
		b.String("name").NameField("name")
	})

	reg.MustDefine("product.product", func(b *erprecord.SchemaBuilder) {
		b.String("name").
			String("default_code", erprecord.AbsentAs(types.OptionalNone)).
			Float("list_price").
			Enum("type", []string{"consu", "service", "product"}).
			ToMany("tag_ids", "product.tag").
			Include(erprecord.Archivable).
			Rename("12.0", "list_price", "lst_price").
			NameField("name").
			CodeField("default_code")
	})

	return reg
}
