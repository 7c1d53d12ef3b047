package config

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"commerce-gateway/internal/proxy"
	"commerce-gateway/internal/router"
	"commerce-gateway/internal/tokens"
)

var envVars = []string{
	"CONFIG_FILE", "PORT", "ENVIRONMENT", "LOG_LEVEL", "GCP_PROJECT", "SECRET_ID",
	"CRM_INSTANCE_URL", "CRM_API_VERSION", "CRM_CLIENT_ID", "CRM_CLIENT_SECRET", "CRM_TOKEN_URL",
	"MARKETING_AUTH_URL", "MARKETING_REST_URL", "MARKETING_CLIENT_ID",
	"MARKETING_CLIENT_SECRET", "MARKETING_ACCOUNT_ID",
	"CHECKOUT_COMPENSATE", "CHECKOUT_CANCELLED_STATUS",
	"CURRENCY", "MAX_UPLOAD_BYTES", "PROXY_TIMEOUT", "PROXY_FINGERPRINT", "ROUTES",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %s, want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.CRM.APIVersion != "v62.0" {
		t.Errorf("APIVersion = %s, want v62.0", cfg.CRM.APIVersion)
	}
	if cfg.Currency != "USD" {
		t.Errorf("Currency = %s, want USD", cfg.Currency)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 50<<20)
	}
	if cfg.ProxyTimeout != 2*time.Minute {
		t.Errorf("ProxyTimeout = %s, want 2m", cfg.ProxyTimeout)
	}
	if cfg.Checkout.Compensate || cfg.Checkout.CancelledStatus != "Cancelled" {
		t.Errorf("Checkout = %+v, want compensation off with Cancelled status", cfg.Checkout)
	}
	if cfg.CoreConfigured() || cfg.MarketingConfigured() {
		t.Error("no credentials should be configured")
	}
	if len(cfg.Routes) != 0 {
		t.Errorf("Routes = %v, want none without upstreams", cfg.Routes)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CRM_INSTANCE_URL", "https://org.example.com/")
	t.Setenv("CRM_API_VERSION", "60.0")
	t.Setenv("CRM_CLIENT_ID", "core-id")
	t.Setenv("CRM_CLIENT_SECRET", "core-secret")
	t.Setenv("MARKETING_AUTH_URL", "https://auth.mc.example.com")
	t.Setenv("MARKETING_REST_URL", "https://rest.mc.example.com/")
	t.Setenv("MARKETING_CLIENT_ID", "mc-id")
	t.Setenv("MARKETING_CLIENT_SECRET", "mc-secret")
	t.Setenv("MARKETING_ACCOUNT_ID", "514000")
	t.Setenv("CHECKOUT_COMPENSATE", "true")
	t.Setenv("PROXY_TIMEOUT", "90s")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.CRM.InstanceURL != "https://org.example.com" {
		t.Errorf("InstanceURL = %s, want trailing slash trimmed", cfg.CRM.InstanceURL)
	}
	if cfg.CRM.APIVersion != "v60.0" {
		t.Errorf("APIVersion = %s, want v60.0", cfg.CRM.APIVersion)
	}
	if cfg.CRM.TokenURL != "https://org.example.com/services/oauth2/token" {
		t.Errorf("TokenURL = %s", cfg.CRM.TokenURL)
	}
	if cfg.Marketing.AccountID != "514000" {
		t.Errorf("AccountID = %s, want 514000", cfg.Marketing.AccountID)
	}
	if !cfg.Checkout.Compensate {
		t.Error("Compensate = false, want true")
	}
	if cfg.ProxyTimeout != 90*time.Second {
		t.Errorf("ProxyTimeout = %s, want 90s", cfg.ProxyTimeout)
	}
	if !cfg.CoreConfigured() || !cfg.MarketingConfigured() {
		t.Error("both domains should be configured")
	}

	// Verify derived routes
	if len(cfg.Routes) != 3 {
		t.Fatalf("Routes len = %d, want 3", len(cfg.Routes))
	}
	byPrefix := make(map[string]int)
	for i, r := range cfg.Routes {
		byPrefix[r.Prefix] = i
	}
	crm := cfg.Routes[byPrefix["/proxy/crm"]]
	if crm.RewritePath != "/services/data/v60.0" || crm.TokenDomain != "" {
		t.Errorf("crm route = %+v", crm)
	}
	files := cfg.Routes[byPrefix["/proxy/crm-files"]]
	if !files.Buffered || files.TokenDomain != "" {
		t.Errorf("file route = %+v, want buffered without token injection", files)
	}
	mc := cfg.Routes[byPrefix["/proxy/marketing"]]
	if mc.Upstream != "https://rest.mc.example.com" || mc.TokenDomain != "" {
		t.Errorf("marketing route = %+v", mc)
	}
}

// serverTokens hands out the gateway's own credentials and counts requests.
type serverTokens struct{ calls int }

func (s *serverTokens) Bearer(ctx context.Context, domain tokens.Domain) (string, error) {
	s.calls++
	return "server-secret", nil
}

func TestDefaultRoutesDoNotLendServerToken(t *testing.T) {
	var gotAuth, gotURI string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotURI = r.URL.RequestURI()
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer upstream.Close()

	cfg := &Config{
		CRM:       CRMConfig{InstanceURL: upstream.URL, APIVersion: "v62.0"},
		Marketing: MarketingConfig{RestURL: upstream.URL},
	}
	table, err := router.NewTable(cfg.DefaultRoutes())
	if err != nil {
		t.Fatalf("NewTable() error: %v", err)
	}
	src := &serverTokens{}
	fwd := proxy.NewForwarder(table, upstream.Client(), src, 1<<20, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for _, path := range []string{"/proxy/crm/sobjects/Account/001A1", "/proxy/crm-files", "/proxy/marketing/contacts/v1/contacts"} {
		gotAuth, gotURI = "unset", ""
		w := httptest.NewRecorder()
		fwd.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, path, nil))

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want upstream 401 relayed", path, w.Code)
		}
		if gotURI == "" {
			t.Errorf("%s: upstream not reached", path)
		}
		if gotAuth != "" {
			t.Errorf("%s: upstream saw Authorization %q, want none", path, gotAuth)
		}
	}
	if src.calls != 0 {
		t.Errorf("server token requested %d times, want 0", src.calls)
	}

	// A caller's own bearer still passes through.
	req := httptest.NewRequest(http.MethodGet, "/proxy/crm/limits", nil)
	req.Header.Set("Authorization", "Bearer caller")
	fwd.ServeHTTP(httptest.NewRecorder(), req)
	if gotAuth != "Bearer caller" || gotURI != "/services/data/v62.0/limits" {
		t.Errorf("caller request reached %s with %q", gotURI, gotAuth)
	}
}

func TestLoadRoutesJSON(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRM_INSTANCE_URL", "https://org.example.com")
	t.Setenv("ROUTES", `[{"prefix":"/proxy/images","upstream":"https://img.example.com","rewrite":"/v1","buffered":true}]`)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(cfg.Routes) != 1 {
		t.Fatalf("Routes len = %d, want 1 (configured routes replace defaults)", len(cfg.Routes))
	}
	r := cfg.Routes[0]
	if r.Prefix != "/proxy/images" || r.RewritePath != "/v1" || !r.Buffered {
		t.Errorf("route = %+v", r)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
		"port": "7070",
		"crm": {"instance_url": "https://org.example.com", "client_id": "id", "client_secret": "secret"},
		"checkout": {"compensate": true}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("Port = %s, want 7070", cfg.Port)
	}
	if cfg.LogLevel != "info" || cfg.Currency != "USD" || cfg.MaxUploadBytes != 50<<20 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Checkout.CancelledStatus != "Cancelled" || !cfg.Checkout.Compensate {
		t.Errorf("Checkout = %+v", cfg.Checkout)
	}
	if !cfg.CoreConfigured() {
		t.Error("core should be configured from file")
	}
	if len(cfg.Routes) != 2 {
		t.Errorf("Routes len = %d, want 2", len(cfg.Routes))
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "malformed api version",
			env:     map[string]string{"CRM_API_VERSION": "latest"},
			wantErr: "invalid crm api_version",
		},
		{
			name:    "patch level",
			env:     map[string]string{"CRM_API_VERSION": "v62.0.1"},
			wantErr: "invalid crm api_version",
		},
		{
			name:    "too old",
			env:     map[string]string{"CRM_API_VERSION": "v49.0"},
			wantErr: "older than v50.0",
		},
		{
			name: "client id without secret",
			env: map[string]string{
				"CRM_INSTANCE_URL": "https://org.example.com",
				"CRM_CLIENT_ID":    "id",
			},
			wantErr: "crm client_secret is required",
		},
		{
			name: "client id without instance",
			env: map[string]string{
				"CRM_CLIENT_ID":     "id",
				"CRM_CLIENT_SECRET": "secret",
			},
			wantErr: "crm instance_url is required",
		},
		{
			name:    "relative instance url",
			env:     map[string]string{"CRM_INSTANCE_URL": "org.example.com"},
			wantErr: "invalid crm instance_url",
		},
		{
			name: "marketing without auth url",
			env: map[string]string{
				"MARKETING_CLIENT_ID":     "id",
				"MARKETING_CLIENT_SECRET": "secret",
			},
			wantErr: "invalid marketing auth_url",
		},
		{
			name:    "bad routes json",
			env:     map[string]string{"ROUTES": "[{"},
			wantErr: "parsing ROUTES JSON",
		},
		{
			name:    "production without project",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "GCP_PROJECT required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(context.Background())
			if err == nil {
				t.Fatalf("Expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestApplySecrets(t *testing.T) {
	cfg := &Config{
		CRM:       CRMConfig{InstanceURL: "https://org.example.com", ClientID: "env-id"},
		Marketing: MarketingConfig{AccountID: "514000"},
	}
	payload := `{"crm":{"client_id":"secret-id","client_secret":"s3cret"},"marketing":{"client_id":"mc","client_secret":"mcs","auth_url":"https://auth.example.com"}}`

	if err := cfg.applySecrets([]byte(payload)); err != nil {
		t.Fatalf("applySecrets() error: %v", err)
	}
	if cfg.CRM.ClientID != "secret-id" || cfg.CRM.ClientSecret != "s3cret" {
		t.Errorf("CRM = %+v, want secret credentials", cfg.CRM)
	}
	if cfg.CRM.InstanceURL != "https://org.example.com" {
		t.Errorf("InstanceURL = %s, want env value kept", cfg.CRM.InstanceURL)
	}
	if cfg.Marketing.AccountID != "514000" || cfg.Marketing.ClientID != "mc" {
		t.Errorf("Marketing = %+v", cfg.Marketing)
	}

	if err := cfg.applySecrets([]byte("not json")); err == nil {
		t.Error("expected error for invalid secret payload")
	}
}

func TestNormalizeAPIVersion(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "", want: "v62.0"},
		{in: "v62.0", want: "v62.0"},
		{in: "58.0", want: "v58.0"},
		{in: "v50.0", want: "v50.0"},
		{in: "v62", wantErr: true},
		{in: "v62.0-beta", wantErr: true},
		{in: "sixty", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeAPIVersion(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("normalizeAPIVersion(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("normalizeAPIVersion(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
