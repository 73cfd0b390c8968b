package formats

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableText aligns columns with spaces, headers in upper case
var TableText = &OutputFormat{
	Name:      "table",
	Extension: ".txt",
	Render: func(w io.Writer, t Table) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		headers := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			headers[i] = strings.ToUpper(Header(col))
		}
		if _, err := fmt.Fprintln(tw, strings.Join(headers, "\t")); err != nil {
			return err
		}
		for _, row := range t.Rows {
			cells := make([]string, len(t.Columns))
			for i, col := range t.Columns {
				cells[i] = oneLine(Cell(row[col]))
			}
			if _, err := fmt.Fprintln(tw, strings.Join(cells, "\t")); err != nil {
				return err
			}
		}
		return tw.Flush()
	},
}

// Markdown renders a pipe table
var Markdown = &OutputFormat{
	Name:      "markdown",
	Extension: ".md",
	Render: func(w io.Writer, t Table) error {
		var b strings.Builder
		b.WriteString("|")
		for _, col := range t.Columns {
			b.WriteString(" " + escapePipes(Header(col)) + " |")
		}
		b.WriteString("\n|")
		for range t.Columns {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range t.Rows {
			b.WriteString("|")
			for _, col := range t.Columns {
				b.WriteString(" " + escapePipes(oneLine(Cell(row[col]))) + " |")
			}
			b.WriteString("\n")
		}
		_, err := io.WriteString(w, b.String())
		return err
	},
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func init() {
	mustRegister(TableText)
	mustRegister(Markdown)
}
