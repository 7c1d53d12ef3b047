package checkout

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-gateway/internal/model"
)

func TestEnsureContactExisting(t *testing.T) {
	org := newFakeOrg()
	org.emailContacts["ada@example.com"] = "003C1"
	svc := newTestService(t, org, Config{})

	result, err := svc.EnsureContact(context.Background(), "tok", &model.ContactRequest{
		LastName: "Lovelace",
		Email:    "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, &model.ContactResult{ContactID: "003C1", AccountID: "001A1"}, result)
	assert.Empty(t, org.writes())
}

func TestEnsureContactCreatesAccountAndContact(t *testing.T) {
	org := newFakeOrg()
	svc := newTestService(t, org, Config{})

	result, err := svc.EnsureContact(context.Background(), "tok", &model.ContactRequest{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
	})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, "Account-1", result.AccountID)
	assert.Equal(t, "Contact-2", result.ContactID)

	account := org.bodies(http.MethodPost, "/sobjects/Account")[0]
	assert.Equal(t, "Grace Hopper", account["Name"])
	contact := org.bodies(http.MethodPost, "/sobjects/Contact")[0]
	assert.Equal(t, "grace@example.com", contact["Email"])
	assert.Equal(t, "Account-1", contact["AccountId"])
}

func TestEnsureContactValidation(t *testing.T) {
	org := newFakeOrg()
	svc := newTestService(t, org, Config{})

	_, err := svc.EnsureContact(context.Background(), "tok", &model.ContactRequest{LastName: "X", Email: "nope"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)

	_, err = svc.EnsureContact(context.Background(), "", &model.ContactRequest{LastName: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Zero(t, org.callCount())
}

func TestSimulateShipment(t *testing.T) {
	org := newFakeOrg()
	svc := newTestService(t, org, Config{})

	out, err := svc.SimulateShipment(context.Background(), "tok", &model.ShipmentUpdate{OrderID: "801O1"})
	require.NoError(t, err)
	assert.Equal(t, ShippingShipped, out.Status)

	patch := org.bodies(http.MethodPatch, "/sobjects/Order/801O1")[0]
	assert.Equal(t, map[string]interface{}{"Shipping_Status__c": "Shipped"}, patch)

	_, err = svc.SimulateShipment(context.Background(), "tok", &model.ShipmentUpdate{})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
}
