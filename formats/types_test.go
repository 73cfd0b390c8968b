package formats

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestRegister(t *testing.T) {
	originalRegistry := registry
	defer func() { registry = originalRegistry }()
	registry = make(map[string]*OutputFormat)

	render := func(io.Writer, Table) error { return nil }
	tests := []struct {
		name     string
		format   *OutputFormat
		errorMsg string
	}{
		{
			name:   "valid format",
			format: &OutputFormat{Name: "test-format", Extension: "test", Render: render},
		},
		{
			name:     "invalid name with uppercase",
			format:   &OutputFormat{Name: "TestFormat", Render: render},
			errorMsg: "invalid format name",
		},
		{
			name:     "empty name",
			format:   &OutputFormat{Name: "", Render: render},
			errorMsg: "invalid format name",
		},
		{
			name:     "missing renderer",
			format:   &OutputFormat{Name: "silent"},
			errorMsg: "no renderer",
		},
		{
			name:     "duplicate",
			format:   &OutputFormat{Name: "test-format", Render: render},
			errorMsg: "already registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Register(tt.format)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}

	f, err := Get("test-format")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.Extension != ".test" {
		t.Errorf("extension not normalized: %q", f.Extension)
	}
}

func TestBuiltinFormats(t *testing.T) {
	if diff := cmp.Diff([]string{"json", "markdown", "table", "yaml"}, List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if _, err := Get("csv"); err == nil || !strings.Contains(err.Error(), "available: json") {
		t.Errorf("unknown format should list the available ones, got %v", err)
	}
}

func sample() Table {
	rows := []map[string]any{
		{
			"id":           int64(1),
			"name":         "Office Chair",
			"tag_ids":      []int64{1, 3},
			"list_price":   70.0,
			"birthday":     time.Date(1985, 4, 12, 0, 0, 0, 0, time.UTC),
			"country_name": "Belgium",
		},
		{
			"id":   int64(2),
			"name": "Desk | Lamp",
		},
	}
	return Table{Columns: Columns(rows), Rows: rows}
}

func TestColumns(t *testing.T) {
	want := []string{"id", "birthday", "country_name", "list_price", "name", "tag_ids"}
	if diff := cmp.Diff(want, sample().Columns); diff != "" {
		t.Errorf("Columns mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdownRender(t *testing.T) {
	tbl := Table{
		Columns: []string{"id", "country_name", "name"},
		Rows:    sample().Rows,
	}
	var buf bytes.Buffer
	if err := Markdown.Render(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	want := "| Id | Country Name | Name |\n" +
		"| --- | --- | --- |\n" +
		"| 1 | Belgium | Office Chair |\n" +
		"| 2 |  | Desk \\| Lamp |\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("markdown mismatch (-want +got):\n%s", diff)
	}
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	if err := TableText.Render(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	for _, h := range []string{"ID", "BIRTHDAY", "COUNTRY NAME", "LIST PRICE", "TAG IDS"} {
		if !strings.Contains(lines[0], h) {
			t.Errorf("header %q missing from %q", h, lines[0])
		}
	}
	for _, cell := range []string{"1985-04-12", "Belgium", "70", "1, 3", "Office Chair"} {
		if !strings.Contains(lines[1], cell) {
			t.Errorf("cell %q missing from %q", cell, lines[1])
		}
	}
}

func TestDataRenderers(t *testing.T) {
	want := []map[string]any{
		{
			"id":           float64(1),
			"name":         "Office Chair",
			"tag_ids":      []any{float64(1), float64(3)},
			"list_price":   float64(70),
			"birthday":     "1985-04-12",
			"country_name": "Belgium",
		},
		{
			"id":           float64(2),
			"name":         "Desk | Lamp",
			"tag_ids":      nil,
			"list_price":   nil,
			"birthday":     nil,
			"country_name": nil,
		},
	}

	var buf bytes.Buffer
	if err := JSON.Render(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	var fromJSON []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if diff := cmp.Diff(want, fromJSON); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := YAML.Render(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	var fromYAML []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("invalid yaml %q: %v", buf.String(), err)
	}
	if len(fromYAML) != 2 || fromYAML[0]["name"] != "Office Chair" || fromYAML[0]["birthday"] != "1985-04-12" {
		t.Errorf("unexpected yaml rows: %v", fromYAML)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{false, "false"},
		{int64(42), "42"},
		{12.5, "12.5"},
		{json.Number("7"), "7"},
		{time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC), "2024-01-02 13:04:05"},
		{[]int64{}, ""},
		{map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
