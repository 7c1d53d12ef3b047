package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"commerce-gateway/internal/model"
	"commerce-gateway/internal/router"
	"commerce-gateway/internal/tokens"
)

// TokenSource supplies bearer tokens for routes that name a token domain.
type TokenSource interface {
	Bearer(ctx context.Context, domain tokens.Domain) (string, error)
}

// hopHeaders are connection-scoped and never relayed.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder is the generic upstream passthrough.
type Forwarder struct {
	table       *router.Table
	client      *http.Client
	tokens      TokenSource
	maxBuffered int64
	logger      *slog.Logger
}

// NewForwarder creates a forwarder over table. src may be nil when no
// route injects credentials.
func NewForwarder(table *router.Table, client *http.Client, src TokenSource, maxBuffered int64, logger *slog.Logger) *Forwarder {
	return &Forwarder{
		table:       table,
		client:      client,
		tokens:      src,
		maxBuffered: maxBuffered,
		logger:      logger,
	}
}

// ServeHTTP routes r through the table and relays the upstream response.
func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	match, ok := f.table.Match(r.URL.RequestURI())
	if !ok {
		WriteNotFound(w)
		return
	}

	out, err := f.outbound(ctx, r, match)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := f.client.Do(out)
	if err != nil {
		if ctx.Err() != nil {
			f.logger.DebugContext(ctx, "client went away before upstream answered",
				slog.String("upstream", match.URL.Host),
			)
			return
		}
		f.logger.WarnContext(ctx, "upstream request failed",
			slog.String("upstream", match.URL.Host),
			slog.String("prefix", match.Rule.Prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, model.NewUpstreamError(match.URL.Host, err))
		return
	}
	defer resp.Body.Close()

	if err := Relay(w, resp); err != nil && ctx.Err() == nil {
		f.logger.WarnContext(ctx, "upstream response interrupted",
			slog.String("upstream", match.URL.Host),
			slog.String("error", err.Error()),
		)
	}
}

// outbound builds the upstream request for r.
func (f *Forwarder) outbound(ctx context.Context, r *http.Request, match *router.Match) (*http.Request, error) {
	body := r.Body
	if r.ContentLength == 0 {
		body = http.NoBody
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, match.URL.String(), body)
	if err != nil {
		return nil, model.NewMalformedRequest("invalid upstream URL")
	}
	out.Header = router.FilterHeaders(r.Header)
	out.ContentLength = r.ContentLength
	if out.ContentLength < 0 {
		out.TransferEncoding = []string{"chunked"}
	}

	if err := PrepareBody(out, match.Rule.Buffered, f.maxBuffered); err != nil {
		return nil, err
	}

	if match.Rule.TokenDomain != "" && out.Header.Get("Authorization") == "" {
		if f.tokens == nil {
			return nil, model.NewAuthFailure("no credentials configured for "+string(match.Rule.TokenDomain), nil)
		}
		bearer, err := f.tokens.Bearer(ctx, match.Rule.TokenDomain)
		if err != nil {
			return nil, err
		}
		out.Header.Set("Authorization", "Bearer "+bearer)
	}
	return out, nil
}

// Relay copies resp to w, flushing as data arrives so streamed and
// server-sent responses reach the caller without delay. Once the status
// line is written, errors can only be logged.
func Relay(w http.ResponseWriter, resp *http.Response) error {
	h := w.Header()
	for k, vs := range resp.Header {
		// The gateway sets its own CORS headers.
		if strings.HasPrefix(k, "Access-Control-") {
			continue
		}
		h[k] = vs
	}
	for _, k := range hopHeaders {
		h.Del(k)
	}
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	buf := make([]byte, 32<<10)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// WriteNotFound writes the bare 404 body used for unrouted paths.
func WriteNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"error": "Not found"})
}

// writeError writes err in the gateway's error shape.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	json.NewEncoder(w).Encode(apiErr)
}
