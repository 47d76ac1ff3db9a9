// Package guardservice wires configuration, storage, the type registry and the
// HTTP transport into a runnable access-control service.
package guardservice

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/contentguard/contentguard/internal/api"
	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/events"
	"github.com/contentguard/contentguard/internal/health"
	"github.com/contentguard/contentguard/internal/logger"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/services"
	"github.com/contentguard/contentguard/internal/store"
	"github.com/contentguard/contentguard/internal/store/postgres"
	"github.com/contentguard/contentguard/internal/store/sqlite"
)

// Run starts the access-control HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("guard-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Guard service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, db, err := newStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// The registry is shared across requests; the bus consumer below keeps it
	// in sync with content mirror writes.
	reg := registry.New(st, cfg.MaxTreeDepth)
	bus := events.NewBus(256)
	go consumeEvents(ctx, bus, reg, log)

	router := buildRouter(st, reg, bus, cfg, log)

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(ctx, cfg, log, st)

	// Block startup until the store reports healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// newStore opens the configured backend and applies the schema.
func newStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, *sql.DB, error) {
	switch cfg.DBDriver {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Error().Stack().Err(err).Msg("SQLite store unavailable")
			return nil, nil, err
		}
		if err := sqlite.Bootstrap(db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sqlite.New(db), db, nil
	case "postgres":
		if err := postgres.Bootstrap(ctx, cfg.PostgresDSN); err != nil {
			log.Error().Stack().Err(err).Msg("Postgres schema bootstrap failed")
			return nil, nil, err
		}
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			log.Error().Stack().Err(err).Msg("Postgres store unavailable")
			return nil, nil, err
		}
		return postgres.NewWithDB(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// consumeEvents applies content mirror events to the shared registry.
func consumeEvents(ctx context.Context, bus *events.Bus, reg *registry.Registry, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-bus.Subscribe():
			switch evt.Kind {
			case events.EventContentTypeRegistered:
				reg.InvalidateTypes()
				log.Debug().Str("type", evt.TypeName).Msg("content type cache invalidated")
			case events.EventContentMirrorUpdated:
				reg.InvalidateHierarchy()
			}
		}
	}
}

func buildRouter(st store.Store, reg *registry.Registry, bus *events.Bus, cfg *config.Config, log zerolog.Logger) *mux.Router {
	groupSvc := services.NewGroupService(st, reg, cfg, nil, log)
	contentSvc := services.NewContentService(st, bus, log)
	return api.NewRouter(groupSvc, contentSvc)
}

// startHealthCheckers starts component checkers and the service-level
// aggregator, then binds the health endpoint to the aggregate.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: store not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
