package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"enrollment-service/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default("usd")
	require.NoError(t, err)
	return c
}

func TestDefault_Lookup(t *testing.T) {
	c := defaultCatalog(t)

	p, err := c.Lookup("beginner")
	require.NoError(t, err)
	assert.Equal(t, "Beginner Course", p.DisplayName)
	assert.Equal(t, int64(4900), p.PriceMinorUnits)
	assert.Equal(t, "usd", p.Currency)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := defaultCatalog(t).Lookup("grandmaster")
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestProducts_OrderedByPrice(t *testing.T) {
	products := defaultCatalog(t).Products()
	require.Len(t, products, 3)
	assert.Equal(t, "beginner", products[0].ID)
	assert.Equal(t, "professional", products[1].ID)
	assert.Equal(t, "expert", products[2].ID)

	products[0].PriceMinorUnits = 1
	p, _ := defaultCatalog(t).Lookup("beginner")
	assert.Equal(t, int64(4900), p.PriceMinorUnits)
}

func TestNew_Validation(t *testing.T) {
	cases := map[string][]catalog.Product{
		"empty":          nil,
		"missing id":     {{DisplayName: "X", PriceMinorUnits: 100}},
		"missing name":   {{ID: "x", PriceMinorUnits: 100}},
		"zero price":     {{ID: "x", DisplayName: "X"}},
		"duplicate id":   {{ID: "x", DisplayName: "X", PriceMinorUnits: 1}, {ID: "x", DisplayName: "Y", PriceMinorUnits: 2}},
		"negative price": {{ID: "x", DisplayName: "X", PriceMinorUnits: -5}},
		"bad currency":   {{ID: "x", DisplayName: "X", PriceMinorUnits: 5, Currency: "dollars"}},
	}
	for name, products := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.New("usd", products)
			assert.Error(t, err)
		})
	}
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency: EUR
products:
  - id: intro
    display_name: Intro Course
    price_minor_units: 1500
  - id: masterclass
    display_name: Masterclass
    price_minor_units: 25000
    currency: gbp
`), 0o600))

	c, err := catalog.Load(path, "usd")
	require.NoError(t, err)

	intro, err := c.Lookup("intro")
	require.NoError(t, err)
	assert.Equal(t, "eur", intro.Currency)
	assert.Equal(t, int64(1500), intro.PriceMinorUnits)

	mc, err := c.Lookup("masterclass")
	require.NoError(t, err)
	assert.Equal(t, "gbp", mc.Currency)

	_, err = c.Lookup("beginner")
	assert.ErrorIs(t, err, catalog.ErrInvalidProduct)
}

func TestLoad_RepoCatalogMatchesDefault(t *testing.T) {
	c, err := catalog.Load(filepath.Join("..", "configs", "catalog.yaml"), "usd")
	require.NoError(t, err)
	assert.Equal(t, defaultCatalog(t).Products(), c.Products())
}

func TestLoad_EmptyPathUsesDefault(t *testing.T) {
	c, err := catalog.Load("", "usd")
	require.NoError(t, err)
	assert.Len(t, c.Products(), 3)
}

func TestLoad_InvalidDefaultCurrency(t *testing.T) {
	for _, currency := range []string{"us", "eu1", ""} {
		c, err := catalog.Load("", currency)
		assert.Error(t, err, currency)
		assert.Nil(t, c, currency)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "nope.yaml"), "usd")
	assert.Error(t, err)
}
