package catalog

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Product is one catalog entry. Products are reference data: the pipeline
// only dereferences them for enrichment (category), never for correctness.
type Product struct {
	ProductID string          `yaml:"product_id"`
	Name      string          `yaml:"name"`
	Category  string          `yaml:"category"`
	Price     decimal.Decimal `yaml:"price"`
	Cost      decimal.Decimal `yaml:"cost"`
}

// Catalog maps product IDs to their catalog entries. Immutable after load.
type Catalog struct {
	products map[string]Product
}

// Load reads a YAML product catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML product list into a catalog.
// Entries without a product_id are rejected; duplicate IDs keep the last one.
func Parse(data []byte) (*Catalog, error) {
	var products []Product
	if err := yaml.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	byID := make(map[string]Product, len(products))
	for i, p := range products {
		if p.ProductID == "" {
			return nil, fmt.Errorf("catalog entry %d: product_id is required", i)
		}
		byID[p.ProductID] = p
	}

	slog.Info("Loaded product catalog", "products", len(byID))
	return &Catalog{products: byID}, nil
}

// Empty returns a catalog with no products. Every lookup misses, so all
// transactions land in the uncategorized bucket.
func Empty() *Catalog {
	return &Catalog{products: map[string]Product{}}
}

// Lookup returns the catalog entry for a product ID.
func (c *Catalog) Lookup(productID string) (Product, bool) {
	p, ok := c.products[productID]
	return p, ok
}

// CategoryOf returns the category of a product, or "" when the product is
// unknown. Callers treat "" as uncategorized.
func (c *Catalog) CategoryOf(productID string) string {
	return c.products[productID].Category
}

// Products returns all catalog entries in unspecified order.
func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}
