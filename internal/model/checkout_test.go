package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutRequestValidate(t *testing.T) {
	item := CheckoutItem{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}

	tests := []struct {
		name    string
		req     CheckoutRequest
		wantMsg string
	}{
		{"no items", CheckoutRequest{AccountID: "A1"}, "Missing items"},
		{"no product id", CheckoutRequest{AccountID: "A1", Items: []CheckoutItem{{Quantity: 1}}}, "Item missing productId"},
		{"zero quantity", CheckoutRequest{AccountID: "A1", Items: []CheckoutItem{{ProductID: "P1"}}}, "Item quantity must be positive"},
		{"negative price", CheckoutRequest{AccountID: "A1", Items: []CheckoutItem{{ProductID: "P1", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}}}, "Item unitPrice must not be negative"},
		{"no account or contact", CheckoutRequest{Items: []CheckoutItem{item}}, "Missing contactId or accountId"},
		{"valid with contact", CheckoutRequest{ContactID: "C1", Items: []CheckoutItem{item}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, 400, apiErr.StatusCode)
		})
	}
}

func TestCheckoutRequestDecodesNumbers(t *testing.T) {
	body := `{"contactId":"C1","items":[{"productId":"P1","quantity":2,"unitPrice":10.00}],"paymentMethod":"card","total":20.00}`

	var req CheckoutRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.True(t, req.Total.Equal(decimal.NewFromInt(20)))
	require.Len(t, req.Items, 1)
	assert.True(t, req.Items[0].UnitPrice.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 2, req.Items[0].Quantity)
}
