// Package adapter defines the operations the HTTP surface depends on.
// Production wiring passes the concrete services; handler tests pass Mock.
package adapter

import (
	"context"
	"net/http"

	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
	"commerce-gateway/internal/tokens"
)

// Tokens issues cached client-credentials tokens.
// Implemented by *tokens.Cache.
type Tokens interface {
	Token(ctx context.Context, domain tokens.Domain) (*tokens.Token, error)
	Configured(domain tokens.Domain) bool
}

// Catalog is the product read path.
// Implemented by *catalog.Service.
type Catalog interface {
	// ListProducts degrades to an empty fallback list when token is empty.
	ListProducts(ctx context.Context, token string, q catalog.Query) (*model.ProductList, error)
	GetProduct(ctx context.Context, token, id, priceBook string) (*model.ProductDetail, error)
}

// Orders is the write path: checkout and its demo helpers.
// Implemented by *checkout.Service.
type Orders interface {
	Checkout(ctx context.Context, token string, req *model.CheckoutRequest) (*model.CheckoutResult, error)
	SimulateShipment(ctx context.Context, token string, upd *model.ShipmentUpdate) (*model.ShipmentUpdate, error)
	EnsureContact(ctx context.Context, token string, req *model.ContactRequest) (*model.ContactResult, error)
}

// Records is raw access to the CRM record API.
// Implemented by *crm.Client.
type Records interface {
	Call(ctx context.Context, token, method, path string, body interface{}) (*crm.Response, error)
	UploadContent(ctx context.Context, token string, f *crm.File) (string, error)
	StreamContent(ctx context.Context, token, id string) (*http.Response, error)
}
