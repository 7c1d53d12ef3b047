package crm

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Record is a query row carrying only an ID.
type Record struct {
	ID string `json:"Id"`
}

// PriceEntry is an active price-book entry for one product.
type PriceEntry struct {
	ID        string          `json:"Id"`
	ProductID string          `json:"Product2Id"`
	UnitPrice decimal.Decimal `json:"UnitPrice"`
}

// FindPriceBook returns the ID of the named active price book, or of the
// standard price book when name is empty. Returns "" when none exists.
func FindPriceBook(ctx context.Context, c *Client, token, name string) (string, error) {
	soql := "SELECT Id FROM Pricebook2 WHERE IsStandard = true LIMIT 1"
	if name != "" {
		soql = fmt.Sprintf("SELECT Id FROM Pricebook2 WHERE Name = %s AND IsActive = true LIMIT 1", Quote(name))
	}

	result, err := Query[Record](ctx, c, token, soql)
	if err != nil {
		return "", err
	}
	if len(result.Records) == 0 {
		return "", nil
	}
	return result.Records[0].ID, nil
}

// ActivePrices returns active entries for productIDs under priceBookID.
func ActivePrices(ctx context.Context, c *Client, token, priceBookID string, productIDs []string) ([]PriceEntry, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	soql := fmt.Sprintf(
		"SELECT Id, Product2Id, UnitPrice FROM PricebookEntry WHERE IsActive = true AND Pricebook2Id = %s AND Product2Id IN %s",
		Quote(priceBookID), QuoteList(productIDs),
	)

	result, err := Query[PriceEntry](ctx, c, token, soql)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}
