package router

import (
	"net/http"
	"strings"
)

// forwardedHeaders is the allow-list of inbound headers sent upstream.
// Browser-injected headers (origin, referer, cookies, sec-*) make some
// providers treat the call as a non-API request, so everything else is dropped.
var forwardedHeaders = map[string]bool{
	"content-type":      true,
	"content-length":    true,
	"authorization":     true,
	"accept":            true,
	"transfer-encoding": true,
	"x-api-key":         true,
	"api-key":           true,
	"x-goog-api-key":    true,
}

// FilterHeaders returns the subset of in that may be forwarded upstream.
// Accept is forced to application/json when absent or asking for HTML.
func FilterHeaders(in http.Header) http.Header {
	out := make(http.Header, len(forwardedHeaders))
	for k, vs := range in {
		if forwardedHeaders[strings.ToLower(k)] {
			out[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
		}
	}

	accept := strings.ToLower(out.Get("Accept"))
	if accept == "" || strings.Contains(accept, "text/html") {
		out.Set("Accept", "application/json")
	}

	return out
}
