package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUniverse(t *testing.T) {
	u := LoadUniverse(t)
	ctx := context.Background()

	if u.Server.Version() != "17.0" {
		t.Errorf("expected version 17.0, got %q", u.Server.Version())
	}

	// archived users and partners are not counted
	counts := map[string]int64{
		"res.users":       2,
		"res.country":     3,
		"res.partner":     7,
		"product.tag":     3,
		"product.product": 3,
	}
	for model, want := range counts {
		got, err := u.Model(t, model).Count(ctx, nil)
		require.NoError(t, err, model)
		assert.Equal(t, want, got, model)
	}

	row, ok := u.Server.Row("res.partner", AzureID)
	require.True(t, ok)
	assert.Equal(t, "Azure Interior", row["name"])
}

func TestRegistryLinks(t *testing.T) {
	reg := Registry()
	require.NoError(t, reg.Link())
	assert.ElementsMatch(t,
		[]string{"res.users", "res.country", "res.partner", "product.tag", "product.product"},
		reg.Models())
}
