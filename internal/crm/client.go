// Package crm is a thin client for the CRM's REST record and query APIs.
//
// Call passes upstream status codes through untouched; the typed helpers
// (Query, Get, Create, Update, UploadContent) turn non-2xx responses into model errors.
// Nothing here retries.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"commerce-gateway/internal/model"
)

const (
	// DefaultAPIVersion is the REST API version used when none is configured.
	DefaultAPIVersion = "v62.0"

	userAgent = "Commerce-Gateway/1.0"

	// maxResponseBody caps buffered (non-streamed) responses.
	maxResponseBody = 16 << 20
)

// Config holds connection settings for the CRM org.
type Config struct {
	InstanceURL string
	APIVersion  string
	HTTPClient  *http.Client
}

// Client issues authenticated calls against one CRM org.
type Client struct {
	httpClient  *http.Client
	instanceURL string
	apiVersion  string
}

// New creates a CRM client.
func New(cfg Config) *Client {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	return &Client{
		httpClient:  client,
		instanceURL: strings.TrimSuffix(cfg.InstanceURL, "/"),
		apiVersion:  version,
	}
}

// Response is a buffered CRM response.
// Data holds the body when it parsed as JSON, otherwise Raw holds the text.
type Response struct {
	StatusCode int
	Data       json.RawMessage
	Raw        string
}

// OK reports a 2xx status. 204 counts as success with no body.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals Data into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Data, v)
}

// Payload returns the body for error details, whichever form it took.
func (r *Response) Payload() json.RawMessage {
	if len(r.Data) > 0 {
		return r.Data
	}
	if r.Raw == "" {
		return nil
	}
	quoted, _ := json.Marshal(r.Raw)
	return quoted
}

// URL resolves path against the org. Paths under /services/ are used as-is;
// anything else is relative to the versioned data API.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "/services/") {
		return c.instanceURL + path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.instanceURL + "/services/data/" + c.apiVersion + path
}

// Call issues a JSON request and buffers the response. body may be nil.
// Only transport failures return an error; any HTTP status is returned as-is.
func (c *Client) Call(ctx context.Context, token, method, path string, body interface{}) (*Response, error) {
	var (
		reader io.Reader
		length int64 = -1
	)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
		length = int64(len(jsonBody))
	}

	resp, err := c.Send(ctx, token, method, path, reader, length, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readResponse(resp)
}

// readResponse buffers resp.Body into a Response.
func readResponse(resp *http.Response) (*Response, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, model.NewUpstreamError("CRM", fmt.Errorf("reading response: %w", err))
	}

	out := &Response{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if json.Valid(raw) {
		out.Data = raw
	} else {
		out.Raw = string(raw)
	}
	return out, nil
}

// Send issues a request with an arbitrary body and returns the unread
// response. The caller must close resp.Body. contentLength < 0 means unknown.
func (c *Client) Send(ctx context.Context, token, method, path string, body io.Reader, contentLength int64, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil && contentLength >= 0 {
		req.ContentLength = contentLength
	}

	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", bearer(token))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, model.NewUpstreamError("CRM", err)
	}
	return resp, nil
}

// bearer normalizes a token that may already carry the scheme.
func bearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}
