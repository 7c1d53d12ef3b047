package handler

import (
	"net/http"
	"strconv"

	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/model"
)

// handleListProducts lists active products with prices.
// GET /products?q=&limit=&offset=&pricebook=
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	limit, err := intParam(params.Get("limit"), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := intParam(params.Get("offset"), "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	q := catalog.Query{
		Q:         params.Get("q"),
		Limit:     limit,
		Offset:    offset,
		PriceBook: params.Get("pricebook"),
	}

	list, err := h.catalog.ListProducts(ctx, h.readToken(ctx, r), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, list)
}

// handleGetProduct returns one product with its price.
// GET /product/{id}?pricebook=
func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, r, model.NewMalformedRequest("Missing product id"))
		return
	}

	detail, err := h.catalog.GetProduct(ctx, h.readToken(ctx, r), id, r.URL.Query().Get("pricebook"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, detail)
}

// intParam parses an optional integer query parameter. Empty means 0.
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewMalformedRequest(name + " must be an integer")
	}
	return n, nil
}
