package handler

import (
	"log/slog"
	"net/http"

	"commerce-gateway/internal/model"
)

// handleCheckout places an order.
// POST /checkout
func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.CheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	// Reject before touching the token cache or the CRM.
	if err := req.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.writeToken(ctx, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "checkout",
		slog.Int("line_items", len(req.Items)),
		slog.String("total", req.Total.String()),
		slog.Bool("has_contact", req.ContactID != ""),
	)

	result, err := h.orders.Checkout(ctx, token, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// handleSimulateShipment moves an order's demo shipping status along.
// POST /order/simulate-shipment
func (h *Handler) handleSimulateShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ShipmentUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.OrderID == "" {
		h.writeError(w, r, model.NewMalformedRequest("Missing orderId"))
		return
	}

	token, err := h.writeToken(ctx, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out, err := h.orders.SimulateShipment(ctx, token, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*model.ShipmentUpdate
	}{true, out})
}

// handleContact finds or creates the demo contact for an email.
// POST /contact
func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.ContactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Email == "" || req.LastName == "" {
		h.writeError(w, r, model.NewMalformedRequest("Missing email or lastName"))
		return
	}

	token, err := h.writeToken(ctx, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	result, err := h.orders.EnsureContact(ctx, token, &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, result)
}
