// Package handler provides the gateway's HTTP surface.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"commerce-gateway/internal/adapter"
	"commerce-gateway/internal/model"
	"commerce-gateway/internal/proxy"
	"commerce-gateway/internal/tokens"
)

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// Deps are the services behind the HTTP surface.
type Deps struct {
	Tokens  adapter.Tokens
	Catalog adapter.Catalog
	Orders  adapter.Orders
	Records adapter.Records

	// Proxy serves /proxy/ through the route table. Nil disables it.
	Proxy http.Handler

	// MaxUploadBytes caps /upload bodies. Zero means proxy.DefaultMaxBuffered.
	MaxUploadBytes int64
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	tokens    adapter.Tokens
	catalog   adapter.Catalog
	orders    adapter.Orders
	records   adapter.Records
	proxy     http.Handler
	maxUpload int64
	logger    *slog.Logger
}

// New creates a Handler.
func New(deps Deps, logger *slog.Logger) *Handler {
	return &Handler{
		tokens:    deps.Tokens,
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		records:   deps.Records,
		proxy:     deps.Proxy,
		maxUpload: deps.MaxUploadBytes,
		logger:    logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Token exchange
	mux.HandleFunc("POST /token", h.handleToken(tokens.Core))
	mux.HandleFunc("POST /marketing/token", h.handleToken(tokens.Marketing))

	// Catalog read path
	mux.HandleFunc("GET /products", h.handleListProducts)
	mux.HandleFunc("GET /product/{id}", h.handleGetProduct)

	// Write path
	mux.HandleFunc("POST /checkout", h.handleCheckout)
	mux.HandleFunc("POST /order/simulate-shipment", h.handleSimulateShipment)
	mux.HandleFunc("POST /contact", h.handleContact)

	// Generic CRM passthrough
	mux.HandleFunc("GET /crm-query", h.handleQuery)
	mux.HandleFunc("POST /crm-record", h.handleCreateRecord)
	mux.HandleFunc("GET /crm-record/{id}", h.handleGetRecord)
	mux.HandleFunc("PATCH /crm-record/{id}", h.handleUpdateRecord)

	// Files
	mux.HandleFunc("POST /upload", h.handleUpload)
	mux.HandleFunc("GET /file/{id}", h.handleFile)

	// Upstream router
	if h.proxy != nil {
		mux.Handle("/proxy/", h.proxy)
	}

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("/", h.handleNotFound)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	proxy.WriteNotFound(w)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		h.logger.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		apiErr = model.NewInternalError(err)
	} else if apiErr.StatusCode >= 500 {
		h.logger.WarnContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", apiErr.Code),
			slog.String("error", err.Error()),
		)
	}

	h.writeJSON(w, apiErr.StatusCode, apiErr)
}

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.NewPayloadTooLarge(MaxRequestBodySize)
		}
		// Don't expose internal error details to client
		return model.NewMalformedRequest("Invalid JSON body")
	}
	return nil
}

// === Tokens ===
//
// Read paths degrade: with no caller token and no usable server credentials
// they run anonymously and the services return fallback data. Write paths
// fail with AUTH_FAILURE instead.

// callerToken returns the caller's bearer token without the scheme.
func callerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return auth
}

// requireCallerToken is for passthrough routes, which never use server credentials.
func requireCallerToken(r *http.Request) (string, error) {
	if token := callerToken(r); token != "" {
		return token, nil
	}
	return "", model.NewAuthFailure("Missing authorization header", nil)
}

// readToken returns the caller's token, else a cached server token, else "".
func (h *Handler) readToken(ctx context.Context, r *http.Request) string {
	if token := callerToken(r); token != "" {
		return token
	}
	return h.serverReadToken(ctx)
}

func (h *Handler) serverReadToken(ctx context.Context) string {
	if !h.tokens.Configured(tokens.Core) {
		return ""
	}
	tok, err := h.tokens.Token(ctx, tokens.Core)
	if err != nil {
		h.logger.WarnContext(ctx, "serving fallback data, token unavailable",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return tok.Value
}

// writeToken returns the caller's token, else a cached server token.
func (h *Handler) writeToken(ctx context.Context, r *http.Request) (string, error) {
	if token := callerToken(r); token != "" {
		return token, nil
	}
	return h.serverWriteToken(ctx)
}

func (h *Handler) serverWriteToken(ctx context.Context) (string, error) {
	tok, err := h.tokens.Token(ctx, tokens.Core)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// maxUploadBytes is the effective /upload limit.
func (h *Handler) maxUploadBytes() int64 {
	if h.maxUpload > 0 {
		return h.maxUpload
	}
	return proxy.DefaultMaxBuffered
}
