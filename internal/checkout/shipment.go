package checkout

import (
	"context"
	"strings"

	"commerce-gateway/internal/model"
)

// SimulateShipment overwrites the shipping fields of an existing order.
// Demo-only: lets the storefront show an order moving through fulfilment.
func (s *Service) SimulateShipment(ctx context.Context, token string, upd *model.ShipmentUpdate) (*model.ShipmentUpdate, error) {
	if strings.TrimSpace(upd.OrderID) == "" {
		return nil, model.NewMalformedRequest("Missing orderId")
	}
	if token == "" {
		return nil, model.NewAuthFailure("CRM token required", nil)
	}

	out := *upd
	if out.Status == "" {
		out.Status = ShippingShipped
	}

	fields := map[string]interface{}{fieldShippingStatus: out.Status}
	if out.TrackingNumber != "" {
		fields[fieldTrackingNumber] = out.TrackingNumber
	}
	if out.Carrier != "" {
		fields[fieldCarrier] = out.Carrier
	}

	if err := s.crm.Update(ctx, token, objectOrder, out.OrderID, fields); err != nil {
		return nil, err
	}
	return &out, nil
}
