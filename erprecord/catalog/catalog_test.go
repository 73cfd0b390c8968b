package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/erprecord/erprecord"
	"github.com/arthur-debert/erprecord/erprecord/catalog"
	"github.com/arthur-debert/erprecord/testutil"
	"github.com/arthur-debert/erprecord/types"
)

func TestLoadFileMatchesDeclaredRegistry(t *testing.T) {
	got, err := catalog.LoadFile(filepath.Join("testdata", "universe.yaml"))
	require.NoError(t, err)
	require.True(t, got.Linked())

	want := testutil.Registry()
	require.NoError(t, want.Link())

	if diff := cmp.Diff(want.Models(), got.Models()); diff != "" {
		t.Fatalf("models mismatch (-want +got):\n%s", diff)
	}

	for _, model := range want.Models() {
		ws, _ := want.Schema(model)
		gs, ok := got.Schema(model)
		require.True(t, ok, model)

		if diff := cmp.Diff(ws.Fields(), gs.Fields(), cmpopts.IgnoreUnexported(erprecord.Field{})); diff != "" {
			t.Errorf("%s fields mismatch (-want +got):\n%s", model, diff)
		}
		for _, f := range ws.Fields() {
			g, _ := gs.Field(f.Name)
			assert.Equal(t, f.Base(), g.Base(), "%s.%s base", model, f.Name)
		}
		assert.Equal(t, ws.Families(), gs.Families(), model)
		assert.Equal(t, ws.DefaultFields(), gs.DefaultFields(), model)
		assert.Equal(t, ws.NameField(), gs.NameField(), model)
		assert.Equal(t, ws.CodeField(), gs.CodeField(), model)
		if diff := cmp.Diff(ws.Mapping(), gs.Mapping()); diff != "" {
			t.Errorf("%s mapping mismatch (-want +got):\n%s", model, diff)
		}
	}
}

func TestLoadedRegistryServesClient(t *testing.T) {
	reg, err := catalog.LoadFile(filepath.Join("testdata", "universe.yaml"))
	require.NoError(t, err)

	srv := testutil.NewServer(t)
	client, err := erprecord.NewClient(srv, reg)
	require.NoError(t, err)

	p, err := client.MustModel("res.partner").GetByCode(context.Background(), "AZ002")
	require.NoError(t, err)
	assert.Equal(t, testutil.BrandonID, p.ID())
}

func TestCatalogFamilies(t *testing.T) {
	doc := `
families:
  - name: addressable
    fields:
      - {name: street, type: char, absent: none}
      - {name: country_id, type: many2one, target: res.country, no_label: true}
models:
  - model: res.country
    fields:
      - {name: name, type: char}
  - model: res.company
    include: [addressable]
    fields:
      - {name: name, type: char}
    mappings:
      "*": {street: street1}
`
	reg, err := catalog.Load(strings.NewReader(doc))
	require.NoError(t, err)

	s, ok := reg.Schema("res.company")
	require.True(t, ok)
	assert.Equal(t, []string{"addressable"}, s.Families())

	street, ok := s.Field("street")
	require.True(t, ok)
	assert.Equal(t, types.OptionalNone, street.Optional)
	assert.Equal(t, "street1", s.WireName(street, "17.0"))

	_, ok = s.Field("country")
	assert.True(t, ok)
	_, ok = s.Field("country_name")
	assert.False(t, ok, "no_label suppresses the name projection")
}

func TestCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "empty document",
			doc:  "",
		},
		{
			name: "no models",
			doc:  "families: []\n",
		},
		{
			name: "unknown type",
			doc: `
models:
  - model: res.partner
    fields:
      - {name: image, type: binary}
`,
		},
		{
			name: "unknown family",
			doc: `
models:
  - model: res.partner
    include: [mail_thread]
    fields:
      - {name: name, type: char}
`,
		},
		{
			name: "unresolved target",
			doc: `
models:
  - model: res.partner
    fields:
      - {name: bank_id, type: many2one, target: res.bank}
`,
		},
		{
			name: "rename of undeclared field",
			doc: `
models:
  - model: res.partner
    fields:
      - {name: name, type: char}
    mappings:
      "13.0": {nickname: nick}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, erprecord.ErrConfig), "got %v", err)
		})
	}
}

func TestCatalogRejectsUnknownKeys(t *testing.T) {
	doc := `
models:
  - model: res.partner
    fields:
      - {name: name, type: char, optional: none}
`
	_, err := catalog.Parse(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "optional")
}
