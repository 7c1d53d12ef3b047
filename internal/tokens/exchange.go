package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTokenTTL is assumed when the token endpoint omits expires_in.
// The core CRM's client-credentials response carries no lifetime.
const DefaultTokenTTL = 30 * time.Minute

// maxTokenResponse caps how much of a token response is read.
const maxTokenResponse = 1 << 20

// GrantFormat selects how the client-credentials grant is encoded.
type GrantFormat int

const (
	// FormGrant posts application/x-www-form-urlencoded (core CRM).
	FormGrant GrantFormat = iota
	// JSONGrant posts a JSON body (marketing automation).
	JSONGrant
)

// ClientCredentials exchanges a client ID/secret pair for a bearer token.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	AccountID    string // marketing tenant member ID; optional
	Format       GrantFormat
	HTTPClient   *http.Client
}

// tokenResponse covers the fields of both identity providers.
type tokenResponse struct {
	AccessToken     string `json:"access_token"`
	InstanceURL     string `json:"instance_url"`
	RestInstanceURL string `json:"rest_instance_url"`
	ExpiresIn       int64  `json:"expires_in"`
}

// Exchange implements Exchanger.
func (c *ClientCredentials) Exchange(ctx context.Context) (*Token, error) {
	req, err := c.newRequest(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling token endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponse))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if parsed.AccessToken == "" {
		return nil, fmt.Errorf("empty access token from %s", c.TokenURL)
	}

	ttl := DefaultTokenTTL
	if parsed.ExpiresIn > 0 {
		ttl = time.Duration(parsed.ExpiresIn) * time.Second
	}

	instance := parsed.InstanceURL
	if instance == "" {
		instance = parsed.RestInstanceURL
	}

	return &Token{
		Value:       parsed.AccessToken,
		InstanceURL: strings.TrimSuffix(instance, "/"),
		ExpiresIn:   ttl,
		Raw:         body,
	}, nil
}

func (c *ClientCredentials) newRequest(ctx context.Context) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)

	switch c.Format {
	case JSONGrant:
		payload := map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.ClientID,
			"client_secret": c.ClientSecret,
		}
		if c.AccountID != "" {
			payload["account_id"] = c.AccountID
		}
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonBody)
		contentType = "application/json"
	default:
		form := url.Values{}
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", c.ClientID)
		form.Set("client_secret", c.ClientSecret)
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
