package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/model"
)

type contactRecord struct {
	ID        string `json:"Id"`
	AccountID string `json:"AccountId"`
}

// resolveAccount uses accountId when given, otherwise the contact's account.
func (s *Service) resolveAccount(ctx context.Context, st *state) error {
	if st.req.AccountID != "" {
		st.accountID = st.req.AccountID
		return nil
	}

	var contact contactRecord
	err := s.crm.Get(ctx, st.token, objectContact, st.req.ContactID, []string{"Id", "AccountId"}, &contact)
	if errors.Is(err, model.ErrNotFound) {
		return model.NewResolutionError(400, fmt.Sprintf("Contact %s not found", st.req.ContactID))
	}
	if err != nil {
		return err
	}
	if contact.AccountID == "" {
		return model.NewResolutionError(400, fmt.Sprintf("Contact %s has no account", st.req.ContactID))
	}

	st.accountID = contact.AccountID
	return nil
}

// resolvePriceBook finds the org's standard price book.
func (s *Service) resolvePriceBook(ctx context.Context, st *state) error {
	id, err := crm.FindPriceBook(ctx, s.crm, st.token, "")
	if err != nil {
		return err
	}
	if id == "" {
		return model.NewConfigurationError("No standard price book found")
	}
	st.priceBookID = id
	return nil
}

// createOrder creates the Draft order with synthesized shipping metadata.
func (s *Service) createOrder(ctx context.Context, st *state) error {
	st.shipment = newShipment(st.today, s.cfg.DeliveryDays, s.pick)

	fields := map[string]interface{}{
		"AccountId":            st.accountID,
		"Pricebook2Id":         st.priceBookID,
		"Status":               StatusDraft,
		"EffectiveDate":        st.today.Format(dateLayout),
		fieldCarrier:           st.shipment.carrier,
		fieldTrackingNumber:    st.shipment.trackingNumber,
		fieldEstimatedDelivery: st.shipment.estimatedDelivery,
		fieldShippingStatus:    st.shipment.status,
	}
	if st.req.PaymentMethod != "" {
		fields[fieldPaymentMethod] = st.req.PaymentMethod
	}

	id, err := s.crm.Create(ctx, st.token, objectOrder, fields)
	if err != nil {
		return err
	}
	st.orderID = id

	s.logger.InfoContext(ctx, "draft order created",
		slog.String("order_id", id),
		slog.String("carrier", st.shipment.carrier),
	)
	return nil
}

// addLineItems creates one order item per request item, strictly in order.
// Price-book entries are looked up or created once per product per checkout.
func (s *Service) addLineItems(ctx context.Context, st *state) error {
	for i, item := range st.req.Items {
		entryID, err := s.priceBookEntry(ctx, st, item)
		if err != nil {
			return fmt.Errorf("item %d (%s): %w", i+1, item.ProductID, err)
		}

		id, err := s.crm.Create(ctx, st.token, objectOrderItem, map[string]interface{}{
			"OrderId":          st.orderID,
			"PricebookEntryId": entryID,
			"Quantity":         item.Quantity,
			"UnitPrice":        item.UnitPrice.InexactFloat64(),
		})
		if err != nil {
			return fmt.Errorf("item %d (%s): %w", i+1, item.ProductID, err)
		}
		st.itemIDs = append(st.itemIDs, id)
	}
	return nil
}

// priceBookEntry returns the active entry for the item's product, creating
// one at the submitted unit price if the product has none.
func (s *Service) priceBookEntry(ctx context.Context, st *state, item model.CheckoutItem) (string, error) {
	if id, ok := st.entries[item.ProductID]; ok {
		return id, nil
	}

	existing, err := crm.ActivePrices(ctx, s.crm, st.token, st.priceBookID, []string{item.ProductID})
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		st.entries[item.ProductID] = existing[0].ID
		return existing[0].ID, nil
	}

	id, err := s.crm.Create(ctx, st.token, objectPricebookEntry, map[string]interface{}{
		"Pricebook2Id": st.priceBookID,
		"Product2Id":   item.ProductID,
		"UnitPrice":    item.UnitPrice.InexactFloat64(),
		"IsActive":     true,
	})
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "price book entry created",
		slog.String("product_id", item.ProductID),
		slog.String("entry_id", id),
	)
	st.entries[item.ProductID] = id
	return id, nil
}

// activateOrder is the commit point.
func (s *Service) activateOrder(ctx context.Context, st *state) error {
	err := s.crm.Update(ctx, st.token, objectOrder, st.orderID, map[string]interface{}{
		"Status": StatusActivated,
	})
	if err != nil {
		return err
	}
	st.activated = true
	return nil
}

type orderRecord struct {
	OrderNumber string `json:"OrderNumber"`
}

// fetchOrderNumber reads the CRM-assigned order number.
func (s *Service) fetchOrderNumber(ctx context.Context, st *state) error {
	var order orderRecord
	if err := s.crm.Get(ctx, st.token, objectOrder, st.orderID, []string{"OrderNumber"}, &order); err != nil {
		return err
	}
	st.orderNumber = order.OrderNumber
	return nil
}
