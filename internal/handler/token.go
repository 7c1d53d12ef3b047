package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"commerce-gateway/internal/model"
	"commerce-gateway/internal/tokens"
)

// handleToken performs (or reuses) the client-credentials exchange for
// domain and returns the identity provider's token response verbatim.
// POST /token, POST /marketing/token
func (h *Handler) handleToken(domain tokens.Domain) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if !h.tokens.Configured(domain) {
			h.writeError(w, r, model.NewAuthFailure("no client credentials configured for "+string(domain), nil))
			return
		}

		tok, err := h.tokens.Token(ctx, domain)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		h.logger.DebugContext(ctx, "token served",
			slog.String("domain", string(domain)),
			slog.Time("expires_at", tok.ExpiresAt),
		)

		if len(tok.Raw) > 0 && json.Valid(tok.Raw) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(tok.Raw)
			return
		}
		h.writeJSON(w, http.StatusOK, tokenResponse{
			AccessToken: tok.Value,
			InstanceURL: tok.InstanceURL,
			TokenType:   "Bearer",
			ExpiresIn:   int64(tok.ExpiresIn.Seconds()),
		})
	}
}

// tokenResponse is used when the upstream response was not kept.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url,omitempty"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}
