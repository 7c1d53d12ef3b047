// Package catalog assembles storefront products from CRM products and
// price-book entries.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
)

const (
	// DefaultLimit applies when the caller sends no positive limit.
	DefaultLimit = 20
	// MaxLimit caps a single page.
	MaxLimit = 200
)

var productFields = []string{"Id", "Name", "Description", "ProductCode", "Family", "DisplayUrl", "IsActive"}

// Query selects a page of products.
type Query struct {
	Q         string
	Limit     int
	Offset    int
	PriceBook string // price book name; empty means the standard book
}

// Normalized clamps limit to (0, MaxLimit] and offset to >= 0.
func (q Query) Normalized() Query {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	q.Q = strings.TrimSpace(q.Q)
	return q
}

// Service reads the catalog from the CRM.
type Service struct {
	crm      *crm.Client
	currency string
	logger   *slog.Logger
}

// New creates a catalog service. currency labels every price.
func New(client *crm.Client, currency string, logger *slog.Logger) *Service {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &Service{crm: client, currency: currency, logger: logger}
}

type productRecord struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	Description string `json:"Description"`
	ProductCode string `json:"ProductCode"`
	Family      string `json:"Family"`
	DisplayURL  string `json:"DisplayUrl"`
	IsActive    bool   `json:"IsActive"`
}

// ListProducts returns one page of products with prices joined in.
//
// An empty token yields an empty page with source "fallback" so the
// storefront can substitute its own data.
func (s *Service) ListProducts(ctx context.Context, token string, q Query) (*model.ProductList, error) {
	q = q.Normalized()

	list := &model.ProductList{
		Products: []model.Product{},
		Offset:   q.Offset,
		Limit:    q.Limit,
		Source:   model.SourceFallback,
	}
	if token == "" {
		return list, nil
	}
	list.Source = model.SourceCRM

	result, err := crm.Query[productRecord](ctx, s.crm, token, productQuery(q))
	if err != nil {
		return nil, err
	}
	total, err := s.countProducts(ctx, token, q, len(result.Records))
	if err != nil {
		return nil, err
	}
	list.Total = total
	if len(result.Records) == 0 {
		return list, nil
	}

	ids := make([]string, len(result.Records))
	for i, rec := range result.Records {
		ids[i] = rec.ID
	}

	prices, err := s.prices(ctx, token, q.PriceBook, ids)
	if err != nil {
		return nil, err
	}

	for _, rec := range result.Records {
		list.Products = append(list.Products, s.toProduct(rec, prices))
	}
	return list, nil
}

// GetProduct returns one product with its price.
// An empty token yields a nil product with source "fallback".
func (s *Service) GetProduct(ctx context.Context, token, id, priceBook string) (*model.ProductDetail, error) {
	if token == "" {
		return &model.ProductDetail{Source: model.SourceFallback}, nil
	}

	var rec productRecord
	if err := s.crm.Get(ctx, token, "Product2", id, productFields, &rec); err != nil {
		return nil, err
	}

	prices, err := s.prices(ctx, token, priceBook, []string{rec.ID})
	if err != nil {
		return nil, err
	}

	product := s.toProduct(rec, prices)
	return &model.ProductDetail{Product: &product, Source: model.SourceCRM}, nil
}

// prices resolves the price book and returns unit prices by product ID.
// A missing price book is not an error; every product then defaults to zero.
func (s *Service) prices(ctx context.Context, token, priceBook string, ids []string) (map[string]decimal.Decimal, error) {
	bookID, err := crm.FindPriceBook(ctx, s.crm, token, priceBook)
	if err != nil {
		return nil, err
	}
	if bookID == "" {
		s.logger.WarnContext(ctx, "price book not found, prices default to zero",
			slog.String("price_book", priceBook),
		)
		return map[string]decimal.Decimal{}, nil
	}

	entries, err := crm.ActivePrices(ctx, s.crm, token, bookID, ids)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(entries))
	for _, e := range entries {
		prices[e.ProductID] = e.UnitPrice
	}
	return prices, nil
}

func (s *Service) toProduct(rec productRecord, prices map[string]decimal.Decimal) model.Product {
	price, ok := prices[rec.ID]
	currency := s.currency
	if !ok {
		price = decimal.Zero
		currency = model.DefaultCurrency
	}
	return model.Product{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		SKU:         rec.ProductCode,
		Family:      rec.Family,
		ImageURL:    rec.DisplayURL,
		Price:       price.InexactFloat64(),
		Currency:    currency,
		Active:      rec.IsActive,
	}
}

// countProducts returns the number of matches across all pages. The page
// query's totalSize only counts the page, so a COUNT() query is issued
// unless the page alone shows the whole result.
func (s *Service) countProducts(ctx context.Context, token string, q Query, pageLen int) (int, error) {
	if q.Offset == 0 && pageLen < q.Limit {
		return pageLen, nil
	}
	result, err := crm.Query[productRecord](ctx, s.crm, token, "SELECT COUNT() FROM Product2 WHERE "+productFilter(q))
	if err != nil {
		return 0, err
	}
	return result.TotalSize, nil
}

func productQuery(q Query) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(productFields, ", "))
	b.WriteString(" FROM Product2 WHERE ")
	b.WriteString(productFilter(q))
	fmt.Fprintf(&b, " ORDER BY Name LIMIT %d OFFSET %d", q.Limit, q.Offset)
	return b.String()
}

func productFilter(q Query) string {
	filter := "IsActive = true"
	if q.Q != "" {
		pattern := crm.Contains(q.Q)
		filter += fmt.Sprintf(" AND (Name LIKE %s OR Description LIKE %s)", pattern, pattern)
	}
	return filter
}
