package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CheckoutRequest is the body of POST /checkout.
// Either ContactID or AccountID must resolve to a CRM account.
type CheckoutRequest struct {
	ContactID     string          `json:"contactId,omitempty"`
	AccountID     string          `json:"accountId,omitempty"`
	Items         []CheckoutItem  `json:"items"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Total         decimal.Decimal `json:"total"`
}

// CheckoutItem is one line of a checkout request.
type CheckoutItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Validate rejects requests that cannot be sent to the CRM.
// Runs before any network call.
func (r *CheckoutRequest) Validate() error {
	if len(r.Items) == 0 {
		return NewMalformedRequest("Missing items")
	}
	for _, item := range r.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return NewMalformedRequest("Item missing productId")
		}
		if item.Quantity <= 0 {
			return NewMalformedRequest("Item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return NewMalformedRequest("Item unitPrice must not be negative")
		}
	}
	if r.AccountID == "" && r.ContactID == "" {
		return NewMalformedRequest("Missing contactId or accountId")
	}
	return nil
}

// CheckoutResult is returned once the order has been activated.
// Loyalty and order-number fields are best effort and may be zero.
type CheckoutResult struct {
	Success           bool   `json:"success"`
	OrderID           string `json:"orderId"`
	OrderNumber       string `json:"orderNumber,omitempty"`
	TrackingNumber    string `json:"trackingNumber"`
	Carrier           string `json:"carrier"`
	EstimatedDelivery string `json:"estimatedDelivery"`
	ShippingStatus    string `json:"shippingStatus"`
	PointsEarned      int64  `json:"pointsEarned"`
}

// ShipmentUpdate is the body of POST /order/simulate-shipment.
type ShipmentUpdate struct {
	OrderID        string `json:"orderId"`
	Status         string `json:"status,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

// ContactRequest is the body of POST /contact.
type ContactRequest struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AccountID string `json:"accountId,omitempty"`
}

// ContactResult reports the contact used for a demo session.
// Created is false when an existing contact matched the email.
type ContactResult struct {
	ContactID string `json:"contactId"`
	AccountID string `json:"accountId,omitempty"`
	Created   bool   `json:"created"`
}
