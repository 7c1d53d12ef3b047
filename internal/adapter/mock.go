package adapter

import (
	"context"
	"io"
	"net/http"
	"strings"

	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
	"commerce-gateway/internal/tokens"
)

// Mock implements every adapter interface for testing.
// Each method can be configured via function fields; unset methods behave
// like a gateway with no CRM credentials.
type Mock struct {
	TokenFunc            func(ctx context.Context, domain tokens.Domain) (*tokens.Token, error)
	ConfiguredDomains    map[tokens.Domain]bool
	ListProductsFunc     func(ctx context.Context, token string, q catalog.Query) (*model.ProductList, error)
	GetProductFunc       func(ctx context.Context, token, id, priceBook string) (*model.ProductDetail, error)
	CheckoutFunc         func(ctx context.Context, token string, req *model.CheckoutRequest) (*model.CheckoutResult, error)
	SimulateShipmentFunc func(ctx context.Context, token string, upd *model.ShipmentUpdate) (*model.ShipmentUpdate, error)
	EnsureContactFunc    func(ctx context.Context, token string, req *model.ContactRequest) (*model.ContactResult, error)
	CallFunc             func(ctx context.Context, token, method, path string, body interface{}) (*crm.Response, error)
	UploadContentFunc    func(ctx context.Context, token string, f *crm.File) (string, error)
	StreamContentFunc    func(ctx context.Context, token, id string) (*http.Response, error)

	// Calls counts invocations per method name.
	Calls map[string]int
}

func (m *Mock) record(name string) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

// Token calls the configured TokenFunc or fails as unconfigured.
func (m *Mock) Token(ctx context.Context, domain tokens.Domain) (*tokens.Token, error) {
	m.record("Token")
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx, domain)
	}
	return nil, model.NewAuthFailure("no client credentials configured for "+string(domain), nil)
}

// Configured reports the domains listed in ConfiguredDomains, or any domain
// when TokenFunc is set.
func (m *Mock) Configured(domain tokens.Domain) bool {
	if m.ConfiguredDomains != nil {
		return m.ConfiguredDomains[domain]
	}
	return m.TokenFunc != nil
}

// ListProducts calls the configured ListProductsFunc or returns the fallback list.
func (m *Mock) ListProducts(ctx context.Context, token string, q catalog.Query) (*model.ProductList, error) {
	m.record("ListProducts")
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx, token, q)
	}
	q = q.Normalized()
	return &model.ProductList{
		Products: []model.Product{},
		Offset:   q.Offset,
		Limit:    q.Limit,
		Source:   model.SourceFallback,
	}, nil
}

// GetProduct calls the configured GetProductFunc or returns a not-found error.
func (m *Mock) GetProduct(ctx context.Context, token, id, priceBook string) (*model.ProductDetail, error) {
	m.record("GetProduct")
	if m.GetProductFunc != nil {
		return m.GetProductFunc(ctx, token, id, priceBook)
	}
	return nil, model.NewNotFoundError("Product2")
}

// Checkout calls the configured CheckoutFunc or returns an error.
func (m *Mock) Checkout(ctx context.Context, token string, req *model.CheckoutRequest) (*model.CheckoutResult, error) {
	m.record("Checkout")
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, token, req)
	}
	return nil, model.NewInternalError(nil)
}

// SimulateShipment calls the configured SimulateShipmentFunc or returns an error.
func (m *Mock) SimulateShipment(ctx context.Context, token string, upd *model.ShipmentUpdate) (*model.ShipmentUpdate, error) {
	m.record("SimulateShipment")
	if m.SimulateShipmentFunc != nil {
		return m.SimulateShipmentFunc(ctx, token, upd)
	}
	return nil, model.NewNotFoundError("Order")
}

// EnsureContact calls the configured EnsureContactFunc or returns an error.
func (m *Mock) EnsureContact(ctx context.Context, token string, req *model.ContactRequest) (*model.ContactResult, error) {
	m.record("EnsureContact")
	if m.EnsureContactFunc != nil {
		return m.EnsureContactFunc(ctx, token, req)
	}
	return nil, model.NewInternalError(nil)
}

// Call calls the configured CallFunc or answers 404.
func (m *Mock) Call(ctx context.Context, token, method, path string, body interface{}) (*crm.Response, error) {
	m.record("Call")
	if m.CallFunc != nil {
		return m.CallFunc(ctx, token, method, path, body)
	}
	return &crm.Response{StatusCode: http.StatusNotFound}, nil
}

// UploadContent calls the configured UploadContentFunc or returns an error.
func (m *Mock) UploadContent(ctx context.Context, token string, f *crm.File) (string, error) {
	m.record("UploadContent")
	if m.UploadContentFunc != nil {
		return m.UploadContentFunc(ctx, token, f)
	}
	return "", model.NewInternalError(nil)
}

// StreamContent calls the configured StreamContentFunc or answers 404.
func (m *Mock) StreamContent(ctx context.Context, token, id string) (*http.Response, error) {
	m.record("StreamContent")
	if m.StreamContentFunc != nil {
		return m.StreamContentFunc(ctx, token, id)
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

// Verify Mock implements the adapter interfaces at compile time.
var (
	_ Tokens  = (*Mock)(nil)
	_ Catalog = (*Mock)(nil)
	_ Orders  = (*Mock)(nil)
	_ Records = (*Mock)(nil)
)
