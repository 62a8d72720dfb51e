// Package catalog holds the immutable table of purchasable courses. Prices
// are defined server-side and snapshotted into every enrollment.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrInvalidProduct = errors.New("invalid product")

type Product struct {
	ID              string `mapstructure:"id" json:"id" validate:"required,max=64"`
	DisplayName     string `mapstructure:"display_name" json:"display_name" validate:"required,max=255"`
	PriceMinorUnits int64  `mapstructure:"price_minor_units" json:"price_minor_units" validate:"gt=0"`
	Currency        string `mapstructure:"currency" json:"currency" validate:"required,len=3,alpha"`
}

var validate = validator.New()

type Catalog struct {
	products map[string]Product
	ordered  []Product
}

type file struct {
	Currency string    `mapstructure:"currency"`
	Products []Product `mapstructure:"products"`
}

// New validates products and builds a catalog. Products without a currency
// get defaultCurrency.
func New(defaultCurrency string, products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, errors.New("catalog is empty")
	}

	c := &Catalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		if p.Currency == "" {
			p.Currency = defaultCurrency
		}
		p.Currency = strings.ToLower(p.Currency)
		if err := validate.Struct(p); err != nil {
			return nil, fmt.Errorf("invalid catalog product %q: %w", p.ID, err)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog product %q", p.ID)
		}
		c.products[p.ID] = p
		c.ordered = append(c.ordered, p)
	}

	sort.SliceStable(c.ordered, func(i, j int) bool {
		return c.ordered[i].PriceMinorUnits < c.ordered[j].PriceMinorUnits
	})
	return c, nil
}

// Default builds the built-in course table. It mirrors configs/catalog.yaml.
func Default(currency string) (*Catalog, error) {
	return New(currency, []Product{
		{ID: "beginner", DisplayName: "Beginner Course", PriceMinorUnits: 4900},
		{ID: "professional", DisplayName: "Professional Course", PriceMinorUnits: 9900},
		{ID: "expert", DisplayName: "Expert Course", PriceMinorUnits: 19900},
	})
}

// Load reads the catalog from a YAML, JSON or TOML file. An empty path
// returns Default.
func Load(path, defaultCurrency string) (*Catalog, error) {
	if path == "" {
		return Default(defaultCurrency)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if f.Currency != "" {
		defaultCurrency = f.Currency
	}
	return New(defaultCurrency, f.Products)
}

func (c *Catalog) Lookup(productID string) (Product, error) {
	p, ok := c.products[productID]
	if !ok {
		return Product{}, ErrInvalidProduct
	}
	return p, nil
}

// Products lists the catalog ordered by price.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.ordered))
	copy(out, c.ordered)
	return out
}
