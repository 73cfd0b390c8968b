package memrpc

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type fixtureColumn struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Many   bool   `yaml:"many"`
}

type fixtureModel struct {
	Model   string           `yaml:"model"`
	Columns []fixtureColumn  `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows"`
}

type fixture struct {
	Version string         `yaml:"version"`
	Models  []fixtureModel `yaml:"models"`
}

// Load creates a server from a YAML fixture:
//
//	version: "17.0"
//	models:
//	  - model: res.partner
//	    columns:
//	      - name: name
//	      - {name: parent_id, target: res.partner}
//	      - {name: child_ids, target: res.partner, many: true}
//	    rows:
//	      - {id: 10, name: Azure Interior, child_ids: [11]}
//
// Every model is defined before any row is seeded, so rows may refer to
// models listed later. Options are applied after the fixture version.
func Load(r io.Reader, opts ...Option) (*Server, error) {
	var fx fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	if fx.Version != "" {
		opts = append([]Option{WithVersion(fx.Version)}, opts...)
	}
	srv := New(opts...)
	for _, m := range fx.Models {
		columns := make([]Column, len(m.Columns))
		for i, c := range m.Columns {
			columns[i] = Column{Name: c.Name, Target: c.Target, Many: c.Many}
		}
		srv.Define(m.Model, columns...)
	}
	for _, m := range fx.Models {
		if _, err := srv.Seed(m.Model, m.Rows...); err != nil {
			return nil, fmt.Errorf("failed to seed %s: %w", m.Model, err)
		}
	}
	return srv, nil
}
