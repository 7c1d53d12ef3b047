// Package config handles loading and validation of gateway configuration.
// Supports both development (env vars or CONFIG_FILE) and production
// (credentials from Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/mod/semver"

	"commerce-gateway/internal/router"
)

// MinAPIVersion is the oldest CRM REST version the record helpers support.
const MinAPIVersion = "v50.0"

// Config holds all gateway configuration.
type Config struct {
	// Server settings
	Port        string `json:"port" envconfig:"PORT" default:"8080"`
	Environment string `json:"environment" envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `json:"log_level" envconfig:"LOG_LEVEL" default:"info"`

	// GCP settings (required in production)
	GCPProject string `json:"gcp_project" envconfig:"GCP_PROJECT"`
	SecretID   string `json:"secret_id" envconfig:"SECRET_ID" default:"commerce-gateway"`

	CRM       CRMConfig       `json:"crm" envconfig:"CRM"`
	Marketing MarketingConfig `json:"marketing" envconfig:"MARKETING"`
	Checkout  CheckoutConfig  `json:"checkout" envconfig:"CHECKOUT"`

	// Currency labels catalog prices.
	Currency string `json:"currency" envconfig:"CURRENCY" default:"USD"`

	// MaxUploadBytes caps buffered uploads and buffered proxy routes.
	MaxUploadBytes int64 `json:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	// ProxyTimeout bounds one proxied exchange end to end.
	ProxyTimeout time.Duration `json:"-" envconfig:"PROXY_TIMEOUT" default:"2m"`
	// ProxyFingerprint sends proxied HTTPS through the browser-fingerprint transport.
	ProxyFingerprint bool `json:"proxy_fingerprint" envconfig:"PROXY_FINGERPRINT"`

	// Routes replaces DefaultRoutes when set.
	Routes Routes `json:"routes" envconfig:"ROUTES"`
}

// CRMConfig holds the core org connection and client credentials.
// Credentials are optional: without them read paths serve fallback data.
type CRMConfig struct {
	InstanceURL  string `json:"instance_url" envconfig:"INSTANCE_URL"`
	APIVersion   string `json:"api_version" envconfig:"API_VERSION"`
	ClientID     string `json:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `json:"client_secret" envconfig:"CLIENT_SECRET"`
	TokenURL     string `json:"token_url" envconfig:"TOKEN_URL"` // derived from InstanceURL if not set
}

// MarketingConfig holds the marketing-automation tenant credentials.
type MarketingConfig struct {
	AuthURL      string `json:"auth_url" envconfig:"AUTH_URL"`
	RestURL      string `json:"rest_url" envconfig:"REST_URL"`
	ClientID     string `json:"client_id" envconfig:"CLIENT_ID"`
	ClientSecret string `json:"client_secret" envconfig:"CLIENT_SECRET"`
	AccountID    string `json:"account_id" envconfig:"ACCOUNT_ID"`
}

// CheckoutConfig tunes the checkout saga.
type CheckoutConfig struct {
	Compensate      bool   `json:"compensate" envconfig:"COMPENSATE"`
	CancelledStatus string `json:"cancelled_status" envconfig:"CANCELLED_STATUS" default:"Cancelled"`
}

// Routes is the proxy route table as configured. The ROUTES variable holds
// it as a JSON array.
type Routes []router.Rule

// Decode implements envconfig.Decoder.
func (r *Routes) Decode(value string) error {
	var rules []router.Rule
	if err := json.Unmarshal([]byte(value), &rules); err != nil {
		return fmt.Errorf("parsing ROUTES JSON: %w", err)
	}
	*r = rules
	return nil
}

// secrets is the Secret Manager payload. Only credentials live there.
type secrets struct {
	CRM       CRMConfig       `json:"crm"`
	Marketing MarketingConfig `json:"marketing"`
}

// Load reads configuration from file or environment, then in production
// overlays credentials from Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars.
func Load(ctx context.Context) (*Config, error) {
	var cfg *Config
	var err error
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		cfg, err = loadFromFile(configPath)
	} else {
		cfg, err = loadFromEnv()
	}
	if err != nil {
		return nil, err
	}

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid many ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Port = withDefault(cfg.Port, "8080")
	cfg.Environment = withDefault(cfg.Environment, "development")
	cfg.LogLevel = withDefault(cfg.LogLevel, "info")
	cfg.SecretID = withDefault(cfg.SecretID, "commerce-gateway")
	cfg.Currency = withDefault(cfg.Currency, "USD")
	cfg.Checkout.CancelledStatus = withDefault(cfg.Checkout.CancelledStatus, "Cancelled")
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.ProxyTimeout == 0 {
		cfg.ProxyTimeout = 2 * time.Minute
	}
	return &cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches credentials from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SecretID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	return c.applySecrets(result.Payload.Data)
}

// applySecrets overlays non-empty credential fields from a secret payload.
func (c *Config) applySecrets(data []byte) error {
	var s secrets
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	c.CRM.InstanceURL = withDefault(s.CRM.InstanceURL, c.CRM.InstanceURL)
	c.CRM.ClientID = withDefault(s.CRM.ClientID, c.CRM.ClientID)
	c.CRM.ClientSecret = withDefault(s.CRM.ClientSecret, c.CRM.ClientSecret)
	c.CRM.TokenURL = withDefault(s.CRM.TokenURL, c.CRM.TokenURL)
	c.Marketing.AuthURL = withDefault(s.Marketing.AuthURL, c.Marketing.AuthURL)
	c.Marketing.RestURL = withDefault(s.Marketing.RestURL, c.Marketing.RestURL)
	c.Marketing.ClientID = withDefault(s.Marketing.ClientID, c.Marketing.ClientID)
	c.Marketing.ClientSecret = withDefault(s.Marketing.ClientSecret, c.Marketing.ClientSecret)
	c.Marketing.AccountID = withDefault(s.Marketing.AccountID, c.Marketing.AccountID)
	return nil
}

// normalize fills derived fields and validates the result.
func (c *Config) normalize() error {
	version, err := normalizeAPIVersion(c.CRM.APIVersion)
	if err != nil {
		return err
	}
	c.CRM.APIVersion = version
	c.CRM.InstanceURL = strings.TrimSuffix(c.CRM.InstanceURL, "/")

	if c.CRM.InstanceURL != "" {
		if err := checkURL("crm instance_url", c.CRM.InstanceURL); err != nil {
			return err
		}
		if c.CRM.TokenURL == "" {
			c.CRM.TokenURL = c.CRM.InstanceURL + "/services/oauth2/token"
		}
	}
	if c.CRM.ClientID != "" {
		if c.CRM.ClientSecret == "" {
			return fmt.Errorf("crm client_secret is required with client_id")
		}
		if c.CRM.InstanceURL == "" {
			return fmt.Errorf("crm instance_url is required with client_id")
		}
	}

	if c.Marketing.ClientID != "" {
		if c.Marketing.ClientSecret == "" {
			return fmt.Errorf("marketing client_secret is required with client_id")
		}
		if err := checkURL("marketing auth_url", c.Marketing.AuthURL); err != nil {
			return err
		}
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	if len(c.Routes) == 0 {
		c.Routes = c.DefaultRoutes()
	}
	return nil
}

// normalizeAPIVersion accepts "v62.0" or "62.0" and returns the v-prefixed
// form. Patch levels, prerelease tags and versions below MinAPIVersion are
// rejected.
func normalizeAPIVersion(v string) (string, error) {
	if v == "" {
		return "v62.0", nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.MajorMinor(v) != v {
		return "", fmt.Errorf("invalid crm api_version %q: want MAJOR.MINOR such as v62.0", v)
	}
	if semver.Compare(v, MinAPIVersion) < 0 {
		return "", fmt.Errorf("crm api_version %s is older than %s", v, MinAPIVersion)
	}
	return v, nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an absolute http(s) URL", name, raw)
	}
	return nil
}

// CoreConfigured reports whether core client credentials are present.
func (c *Config) CoreConfigured() bool {
	return c.CRM.ClientID != "" && c.CRM.ClientSecret != ""
}

// MarketingConfigured reports whether marketing client credentials are present.
func (c *Config) MarketingConfigured() bool {
	return c.Marketing.ClientID != "" && c.Marketing.ClientSecret != ""
}

// DefaultRoutes builds the proxy table used when ROUTES is unset.
// Default routes never inject server credentials: callers bring their own
// bearer, as on the /crm-* routes. Token injection is opt-in per rule via
// ROUTES. File uploads are buffered.
func (c *Config) DefaultRoutes() Routes {
	var routes Routes
	if c.CRM.InstanceURL != "" {
		base := "/services/data/" + c.CRM.APIVersion
		routes = append(routes,
			router.Rule{Prefix: "/proxy/crm", Upstream: c.CRM.InstanceURL, RewritePath: base},
			router.Rule{Prefix: "/proxy/crm-files", Upstream: c.CRM.InstanceURL, RewritePath: base + "/sobjects/ContentVersion", Buffered: true},
		)
	}
	if c.Marketing.RestURL != "" {
		routes = append(routes,
			router.Rule{Prefix: "/proxy/marketing", Upstream: strings.TrimSuffix(c.Marketing.RestURL, "/")},
		)
	}
	return routes
}
