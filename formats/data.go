package formats

import (
	"io"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// JSON renders the rows as an indented array of objects
var JSON = &OutputFormat{
	Name:      "json",
	Extension: ".json",
	Render: func(w io.Writer, t Table) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t.rows())
	},
}

// YAML renders the rows as a sequence of mappings
var YAML = &OutputFormat{
	Name:      "yaml",
	Extension: ".yaml",
	Render: func(w io.Writer, t Table) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t.rows()); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	mustRegister(JSON)
	mustRegister(YAML)
}
