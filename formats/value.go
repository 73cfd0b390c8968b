package formats

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	dateLayout     = "2006-01-02"
	datetimeLayout = "2006-01-02 15:04:05"
)

var titleCaser = cases.Title(language.Und)

// Header turns a field name into a column title: "country_name" ->
// "Country Name"
func Header(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

// Cell formats one decoded value for the text renderers
func Cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case time.Time:
		return formatTime(val)
	case []int64:
		parts := make([]string, len(val))
		for i, id := range val {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// plain converts values for the data renderers: times become their
// remote string form, everything else is kept
func plain(v any) any {
	switch val := v.(type) {
	case time.Time:
		return formatTime(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = plain(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = plain(inner)
		}
		return out
	}
	return v
}

func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(dateLayout)
	}
	return t.Format(datetimeLayout)
}

// rows projects t onto its columns, in column order
func (t Table) rows() []map[string]any {
	out := make([]map[string]any, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for _, col := range t.Columns {
			m[col] = plain(row[col])
		}
		out[i] = m
	}
	return out
}

// Columns returns the union of keys over rows, with "id" first and the
// rest sorted
func Columns(rows []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	for i, c := range cols {
		if c == "id" {
			copy(cols[1:i+1], cols[:i])
			cols[0] = "id"
			break
		}
	}
	return cols
}
