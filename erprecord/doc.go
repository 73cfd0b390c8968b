// Package erprecord provides typed access to the records of a remote ERP
// service that speaks the model-method RPC protocol (search_read, create,
// write, unlink and friends).
//
//	Overview
//
// Record types are declared once in a Registry. Each declaration names
// the remote model, its fields and their kinds, and how references are
// exposed. After Link resolves reference targets and aliases, a Client
// binds the registry to a Session and hands out one Manager per model:
//
//	reg := erprecord.NewRegistry()
//	reg.MustDefine("res.partner", func(b *erprecord.SchemaBuilder) {
//		b.String("name").
//			String("email", erprecord.AbsentAs(types.OptionalFalse)).
//			Many2One("parent_id", "res.partner").
//			ToMany("child_ids", "res.partner").
//			Include(erprecord.Timestamps).
//			NameField("name")
//	})
//	if err := reg.Link(); err != nil {
//		return err
//	}
//	client, err := erprecord.NewClient(session, reg)
//	partners := client.MustModel("res.partner")
//	azure, err := partners.GetByName(ctx, "Azure Interior")
//	kids, err := azure.Refs(ctx, "children")
//
//	References
//
// A single reference "parent_id" is exposed three ways: "parent_id" holds
// the id, "parent" the referenced record (fetched lazily through Ref and
// cached on first use) and "parent_name" the display name sent by the
// server. The name projection is read-only. List references expose the
// id list and, through Refs, the records. Writes accept ids, records or,
// on create, nested Values. A list of ids replaces the linked set; a list
// mixing ids and nested Values links and creates element by element.
//
//	Absent values
//
// The server sends false for any empty field. How a declared field
// decodes it is chosen per field: Required passes it through as
// received, OptionalFalse keeps false and OptionalNone yields nil.
//
//	Versions
//
// Fields renamed between server versions are declared with Rename. Every
// name sent to the server, in field lists, filters, sort clauses and
// write values, goes through the mapping for the session's version.
//
//	Errors
//
// Failures are typed: ConfigError for bad declarations, FieldError for
// unknown or read-only fields, ValueError for values that do not fit a
// field, DomainError for malformed filters, NotFoundError and
// MultipleFoundError for lookups. Each matches its sentinel (ErrConfig,
// ErrFieldResolution, ErrValue, ...) with errors.Is. Errors raised by the
// Session are returned unchanged.
package erprecord
