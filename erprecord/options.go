package erprecord

// Option configures a read or search
type Option func(*options)

type options struct {
	fields   []string
	optional bool
	order    string
	limit    int
	offset   int
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fields selects the local fields to read. Any projection of a relation
// reads the relation. Without Fields the schema's default selection is
// read, or every field when the schema has none.
func Fields(names ...string) Option {
	return func(o *options) { o.fields = append([]string(nil), names...) }
}

// Optional makes missing records a normal outcome: List returns the
// records found and Get, GetByName and GetByCode return nil.
func Optional() Option {
	return func(o *options) { o.optional = true }
}

// Order sets the sort clause, e.g. "name desc, id". Field names are
// local names and are translated like filter fields.
func Order(clause string) Option {
	return func(o *options) { o.order = clause }
}

// Limit caps the number of search results
func Limit(n int) Option {
	return func(o *options) { o.limit = n }
}

// Offset skips the first n search results
func Offset(n int) Option {
	return func(o *options) { o.offset = n }
}
