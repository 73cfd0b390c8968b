package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/formats"
	"github.com/arthur-debert/erprecord/search"
	"github.com/arthur-debert/erprecord/types"
)

// render writes rows in the configured format. Without explicit
// columns every key of every row is shown.
func (cli *CLI) render(cmd *cobra.Command, rows []map[string]any, columns []string) error {
	format, err := formats.Get(cli.viperInst.GetString("format"))
	if err != nil {
		return &CLIError{Operation: "render output", Cause: err.Error(),
			Suggestions: []string{"use one of: " + strings.Join(formats.List(), ", ")}}
	}
	if len(columns) == 0 {
		columns = formats.Columns(rows)
	}
	return format.Render(cmd.OutOrStdout(), formats.Table{Columns: columns, Rows: rows})
}

func (cli *CLI) renderRecords(cmd *cobra.Command, records erprecord.Records, fields []string) error {
	rows, err := records.Maps(false)
	if err != nil {
		return err
	}
	var columns []string
	if len(fields) > 0 {
		columns = append([]string{"id"}, fields...)
	}
	return cli.render(cmd, rows, columns)
}

func (cli *CLI) addTypesCommand() {
	cmd := &cobra.Command{
		Use:   "types [model]",
		Short: "List the declared models or the fields of one model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := cli.registry()
			if err != nil {
				return err
			}
			if err := reg.Link(); err != nil {
				return err
			}
			if len(args) == 0 {
				return cli.render(cmd, modelRows(reg), []string{"model", "fields", "families", "name_field", "code_field"})
			}
			s, ok := reg.Schema(args[0])
			if !ok {
				return &CLIError{Operation: "describe model", Cause: fmt.Sprintf("model %q is not in the catalog", args[0]),
					Suggestions: []string{"run 'erpctl types' to list the declared models"}}
			}
			return cli.render(cmd, fieldRows(s), []string{"name", "type", "projection", "optional", "remote", "alias_of"})
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func modelRows(reg *erprecord.Registry) []map[string]any {
	var rows []map[string]any
	for _, model := range reg.Models() {
		s, _ := reg.Schema(model)
		rows = append(rows, map[string]any{
			"model":      model,
			"fields":     int64(len(s.Fields())),
			"families":   strings.Join(s.Families(), ", "),
			"name_field": s.NameField(),
			"code_field": s.CodeField(),
		})
	}
	return rows
}

func fieldRows(s *erprecord.Schema) []map[string]any {
	var rows []map[string]any
	for _, f := range s.Fields() {
		kind := f.Kind.String()
		if f.IsRef() {
			kind = "many2one " + f.Target
			if f.Many {
				kind = "x2many " + f.Target
			}
		}
		projection := ""
		if f.Projection != types.ProjectNone {
			projection = f.Projection.String()
		}
		rows = append(rows, map[string]any{
			"name":       f.Name,
			"type":       kind,
			"projection": projection,
			"optional":   f.Optional.String(),
			"remote":     f.Base(),
			"alias_of":   f.AliasOf,
		})
	}
	return rows
}

func (cli *CLI) addSearchCommand() {
	cmd := &cobra.Command{
		Use:   "search MODEL [FIELD OP VALUE | FIELD=VALUE | and | or | not]...",
		Short: "Search records matching filters",
		Long: `Search records of MODEL. Conditions are FIELD OP VALUE triples or
FIELD=VALUE shorthands; consecutive conditions are combined with AND,
"or" and "and" combine the groups around them from left to right and
"not" negates the next condition. Fields may be dotted paths through
references. Values of "in" and "not in" are comma separated.

Examples:
  erpctl search res.partner is_company = true
  erpctl search res.partner name ilike azure or ref=DA001
  erpctl search res.partner parent.name = "Azure Interior" --fields name,email
  erpctl search product.product list_price ">" 50 --order "list_price desc"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseFilters(args[1:])
			if err != nil {
				return &CLIError{Operation: "parse filters", Cause: err.Error()}
			}
			fields, _ := cmd.Flags().GetStringSlice("fields")
			order, _ := cmd.Flags().GetString("order")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			countOnly, _ := cmd.Flags().GetBool("count")
			idsOnly, _ := cmd.Flags().GetBool("ids")

			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}

			if countOnly {
				n, err := m.Count(ctx, query.Domain())
				if err != nil {
					return explain("count", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			}

			opts := []erprecord.Option{erprecord.Order(order), erprecord.Limit(limit), erprecord.Offset(offset)}
			if idsOnly {
				ids, err := m.SearchIDs(ctx, query.Domain(), opts...)
				if err != nil {
					return explain("search", err)
				}
				for _, id := range ids {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
						return err
					}
				}
				return nil
			}

			if len(fields) > 0 {
				opts = append(opts, erprecord.Fields(fields...))
			}
			records, err := m.Search(ctx, query.Domain(), opts...)
			if err != nil {
				return explain("search", err)
			}
			return cli.renderRecords(cmd, records, fields)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Fields to read (default: the model's default fields)")
	cmd.Flags().String("order", "", "Sort order, e.g. \"name desc, id\"")
	cmd.Flags().Int("limit", 0, "Maximum number of records (0 for no limit)")
	cmd.Flags().Int("offset", 0, "Number of records to skip")
	cmd.Flags().Bool("count", false, "Print the number of matching records")
	cmd.Flags().Bool("ids", false, "Print matching ids only")
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addFindCommand() {
	cmd := &cobra.Command{
		Use:   "find MODEL QUERY [FILTER]...",
		Short: "Find records by text, best matches first",
		Long: `Find records of MODEL whose text fields contain QUERY, ranked by
relevance. Matches in the name field rank highest. Optional filters use
the same syntax as "search" and restrict the candidates.

Examples:
  erpctl find res.partner azure
  erpctl find res.partner jordan --fields email --limit 5
  erpctl find res.partner "deco addict" --exact is_company = true`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseFilters(args[2:])
			if err != nil {
				return &CLIError{Operation: "parse filters", Cause: err.Error()}
			}
			fields, _ := cmd.Flags().GetStringSlice("fields")
			limit, _ := cmd.Flags().GetInt("limit")
			exact, _ := cmd.Flags().GetBool("exact")
			caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")

			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}
			engine := search.NewEngine(m, search.WithLogger(cli.log))
			results, err := engine.Search(ctx, search.Options{
				Query:           args[1],
				Fields:          fields,
				CaseSensitive:   caseSensitive,
				ExactMatch:      exact,
				EnableHighlight: true,
				MaxResults:      limit,
			}, query.Domain())
			if err != nil {
				return explain("find", err)
			}
			return cli.renderResults(cmd, results)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Text fields to search (default: every text field)")
	cmd.Flags().Int("limit", 0, "Maximum number of results (0 for no limit)")
	cmd.Flags().Bool("exact", false, "Match whole field values only")
	cmd.Flags().Bool("case-sensitive", false, "Match case")
	cli.rootCmd.AddCommand(cmd)
}

// renderResults shows each match with its score and the searched
// fields, highlighted where they matched
func (cli *CLI) renderResults(cmd *cobra.Command, results []search.Result) error {
	rows := make([]map[string]any, 0, len(results))
	var columns []string
	for i, res := range results {
		fields := res.Record.Fields()
		if i == 0 {
			columns = append([]string{"id", "score", "match"}, fields...)
		}
		row := map[string]any{
			"id":    res.Record.ID(),
			"score": fmt.Sprintf("%.2f", res.Score),
			"match": string(res.MatchType),
		}
		for _, name := range fields {
			if text, ok := res.Highlights[name]; ok {
				row[name] = text
				continue
			}
			v, err := res.Record.Get(name)
			if err != nil {
				return err
			}
			row[name] = v
		}
		rows = append(rows, row)
	}
	if columns == nil {
		columns = []string{"id", "score", "match"}
	}
	return cli.render(cmd, rows, columns)
}

func (cli *CLI) addGetCommand() {
	cmd := &cobra.Command{
		Use:   "get MODEL ID...",
		Short: "Read records by id",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return &CLIError{Operation: "read", Cause: err.Error()}
			}
			fields, _ := cmd.Flags().GetStringSlice("fields")
			optional, _ := cmd.Flags().GetBool("optional")

			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}
			var opts []erprecord.Option
			if len(fields) > 0 {
				opts = append(opts, erprecord.Fields(fields...))
			}
			if optional {
				opts = append(opts, erprecord.Optional())
			}
			records, err := m.List(ctx, ids, opts...)
			if err != nil {
				return explain("read", err)
			}
			return cli.renderRecords(cmd, records, fields)
		},
	}
	cmd.Flags().StringSlice("fields", nil, "Fields to read (default: the model's default fields)")
	cmd.Flags().Bool("optional", false, "Skip missing ids instead of failing")
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addCreateCommand() {
	cmd := &cobra.Command{
		Use:   "create MODEL FIELD=VALUE...",
		Short: "Create a record and print its id",
		Long: `Create a record of MODEL. Values are converted to the declared
field types; list references take comma separated ids.

Example:
  erpctl create res.partner name="Ready Mat" parent=10 email=info@readymat.example`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(m.Schema(), args[1:])
			if err != nil {
				return explain("create", err)
			}
			id, err := m.Create(ctx, values)
			if err != nil {
				return explain("create", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addUpdateCommand() {
	cmd := &cobra.Command{
		Use:   "update MODEL ID FIELD=VALUE...",
		Short: "Write field values on a record",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:2])
			if err == nil && len(ids) == 0 {
				err = fmt.Errorf("invalid record id %q", args[1])
			}
			if err != nil {
				return &CLIError{Operation: "update", Cause: err.Error()}
			}
			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}
			values, err := parseAssignments(m.Schema(), args[2:])
			if err != nil {
				return explain("update", err)
			}
			return explain("update", m.Update(ctx, ids[0], values))
		},
	}
	cli.rootCmd.AddCommand(cmd)
}

func (cli *CLI) addDeleteCommand() {
	cmd := &cobra.Command{
		Use:     "delete MODEL ID...",
		Aliases: []string{"unlink"},
		Short:   "Delete records",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return &CLIError{Operation: "delete", Cause: err.Error()}
			}
			ctx, cancel := cli.context(cmd)
			defer cancel()
			m, err := cli.manager(ctx, args[0])
			if err != nil {
				return err
			}
			return explain("delete", m.Delete(ctx, ids))
		},
	}
	cli.rootCmd.AddCommand(cmd)
}
