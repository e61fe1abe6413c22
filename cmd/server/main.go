// Command server runs the agentstore tenant-isolated entity service.
//
// Configuration is layered: built-in defaults, then a YAML file (discovered
// via AGENTSTORE_CONFIG, ./config.yaml, or /etc/agentstore/config.yaml, or
// passed with -config), then AGENTSTORE_* environment overrides.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/renum/agentstore/pkg/auth"
	"github.com/renum/agentstore/pkg/auth/apikey"
	"github.com/renum/agentstore/pkg/auth/header"
	"github.com/renum/agentstore/pkg/auth/jwt"
	"github.com/renum/agentstore/pkg/config"
	"github.com/renum/agentstore/pkg/observability"
	"github.com/renum/agentstore/pkg/storage"
	"github.com/renum/agentstore/pkg/storage/memory"
	"github.com/renum/agentstore/pkg/storage/postgres"
	"github.com/renum/agentstore/pkg/tenancy"
	"github.com/renum/agentstore/pkg/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create store.
	var store storage.EntityStore
	switch cfg.Storage.Type {
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:              cfg.Storage.Postgres.DSN,
			MaxConns:         cfg.Storage.Postgres.MaxConns,
			BootstrapOnStart: cfg.Storage.Postgres.BootstrapOnStart,
		})
		if err != nil {
			return fmt.Errorf("creating postgres store: %w", err)
		}
		store = pg
		slog.Info("storage enabled", "type", "postgres")
	default:
		store = memory.New()
		slog.Info("storage enabled", "type", "memory")
	}
	defer store.Close()

	// Every entity operation goes through the guard; handlers never see the
	// raw store.
	guarded := storage.Guard(store, tenancy.NewPolicyGuard())

	chain, err := buildAuthChain(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring authentication: %w", err)
	}

	adapter := transport.NewAdapter(guarded)

	mux := http.NewServeMux()
	mux.Handle("/v1/", adapter.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.HealthCheck(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	// Middleware chain, outermost first: recovery wraps everything so the
	// binding teardown in the auth layer still runs on panic.
	var handler http.Handler = mux
	handler = auth.Middleware(chain, auth.DefaultBypassEndpoints)(handler)
	handler = observability.MetricsMiddleware(handler)
	handler = transport.Logging(slog.Default())(handler)
	handler = transport.RequestID(handler)
	handler = transport.Recovery(handler)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"port", cfg.Server.Port,
			"storage", cfg.Storage.Type,
			"auth", cfg.Auth.Type,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildAuthChain assembles the authenticator chain from configuration.
// Header resolution is last so credential-bearing requests are always
// evaluated by the stronger authenticator first.
func buildAuthChain(cfg config.AuthConfig) (*auth.Chain, error) {
	var authenticators []auth.Authenticator

	switch cfg.Type {
	case "apikey":
		entries := make([]apikey.Entry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			entries = append(entries, apikey.Entry{
				Key:      k.Key,
				Subject:  k.Subject,
				TenantID: k.TenantID,
			})
		}
		authenticators = append(authenticators, apikey.New(entries))
	case "jwt":
		authenticators = append(authenticators, jwt.New(jwt.Config{
			Secret:      cfg.JWT.Secret,
			Issuer:      cfg.JWT.Issuer,
			Audience:    cfg.JWT.Audience,
			TenantClaim: cfg.JWT.TenantClaim,
		}))
	case "header":
		authenticators = append(authenticators, header.New())
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	return &auth.Chain{Authenticators: authenticators}, nil
}
