package model

// Catalog sources reported to the storefront.
const (
	SourceCRM      = "crm"
	SourceFallback = "fallback"
)

// DefaultCurrency is used when the CRM has no price for a product.
const DefaultCurrency = "USD"

// Product is the storefront-facing product shape.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	SKU         string  `json:"sku,omitempty"`
	Family      string  `json:"family,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Active      bool    `json:"isActive"`
}

// ProductList is the response of GET /products.
type ProductList struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Offset   int       `json:"offset"`
	Limit    int       `json:"limit"`
	Source   string    `json:"source"`
}

// ProductDetail is the response of GET /product/{id}.
// Product is nil when the catalog degraded to fallback.
type ProductDetail struct {
	Product *Product `json:"product"`
	Source  string   `json:"source"`
}
