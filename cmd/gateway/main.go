// Commerce Gateway - token cache, upstream proxy and checkout orchestration
// in front of a CRM org. Stateless; designed for Cloud Run deployment.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"commerce-gateway/internal/catalog"
	"commerce-gateway/internal/checkout"
	"commerce-gateway/internal/config"
	"commerce-gateway/internal/crm"
	"commerce-gateway/internal/handler"
	"commerce-gateway/internal/middleware"
	"commerce-gateway/internal/proxy"
	"commerce-gateway/internal/router"
	"commerce-gateway/internal/tokens"
	"commerce-gateway/internal/transport"
)

// crmTimeout bounds a single record API call.
const crmTimeout = 60 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := initLogger(cfg)
	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("crm_instance", cfg.CRM.InstanceURL),
		slog.String("api_version", cfg.CRM.APIVersion),
		slog.Bool("core_credentials", cfg.CoreConfigured()),
		slog.Bool("marketing_credentials", cfg.MarketingConfigured()),
		slog.Int("routes", len(cfg.Routes)),
	)

	apiClient := transport.NewClient(transport.Options{Timeout: crmTimeout})
	cache := newTokenCache(cfg, apiClient, logger)

	crmClient := crm.New(crm.Config{
		InstanceURL: cfg.CRM.InstanceURL,
		APIVersion:  cfg.CRM.APIVersion,
		HTTPClient:  apiClient,
	})

	checkoutCfg := checkout.DefaultConfig()
	checkoutCfg.Compensate = cfg.Checkout.Compensate
	checkoutCfg.CancelledStatus = cfg.Checkout.CancelledStatus

	table, err := router.NewTable(cfg.Routes)
	if err != nil {
		return fmt.Errorf("building route table: %w", err)
	}
	for _, r := range table.Rules() {
		logger.Debug("route",
			slog.String("prefix", r.Prefix),
			slog.String("upstream", r.Upstream),
			slog.Bool("buffered", r.Buffered),
		)
	}
	upstream := transport.NewClient(transport.Options{
		Timeout:     cfg.ProxyTimeout,
		Fingerprint: cfg.ProxyFingerprint,
	})

	h := handler.New(handler.Deps{
		Tokens:         cache,
		Catalog:        catalog.New(crmClient, cfg.Currency, logger),
		Orders:         checkout.New(crmClient, checkoutCfg, logger),
		Records:        crmClient,
		Proxy:          proxy.NewForwarder(table, upstream, cache, cfg.MaxUploadBytes, logger),
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Recovery must be outermost to catch panics from logging middleware.
	// CORS sits outside Logging so preflights are logged with their 204.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.AssignRequestID(),
		middleware.CORS(),
		middleware.Logging(logger),
	)(mux)

	// WriteTimeout must outlast the proxy timeout or long uploads are cut off.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  cfg.ProxyTimeout,
		WriteTimeout: cfg.ProxyTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newTokenCache registers an exchanger for each domain with credentials.
func newTokenCache(cfg *config.Config, client *http.Client, logger *slog.Logger) *tokens.Cache {
	cache := tokens.NewCache(logger)
	if cfg.CoreConfigured() {
		cache.Register(tokens.Core, &tokens.ClientCredentials{
			TokenURL:     cfg.CRM.TokenURL,
			ClientID:     cfg.CRM.ClientID,
			ClientSecret: cfg.CRM.ClientSecret,
			Format:       tokens.FormGrant,
			HTTPClient:   client,
		})
	}
	if cfg.MarketingConfigured() {
		cache.Register(tokens.Marketing, &tokens.ClientCredentials{
			TokenURL:     strings.TrimSuffix(cfg.Marketing.AuthURL, "/") + "/v2/token",
			ClientID:     cfg.Marketing.ClientID,
			ClientSecret: cfg.Marketing.ClientSecret,
			AccountID:    cfg.Marketing.AccountID,
			Format:       tokens.JSONGrant,
			HTTPClient:   client,
		})
	}
	return cache
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for Cloud Logging, development uses text.
func initLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var h slog.Handler
	if cfg.Environment == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}
