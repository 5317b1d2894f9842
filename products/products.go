// Package products serves the fixed product catalog behind the authentication gate.
package products

// Product represents a catalog entry.
type Product struct {
	ID    int     `json:"id" example:"1"`
	Name  string  `json:"name" example:"Product 1"`
	Price float64 `json:"price" example:"9.99"`
}

var catalog = []Product{
	{ID: 1, Name: "Product 1", Price: 9.99},
	{ID: 2, Name: "Product 2", Price: 19.99},
}

// List returns the catalog in display order. The slice is a copy.
func List() []Product {
	out := make([]Product, len(catalog))
	copy(out, catalog)
	return out
}
