package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/stackwatch-systems/stackwatch/internal/admission"
	"github.com/stackwatch-systems/stackwatch/internal/config"
	"github.com/stackwatch-systems/stackwatch/internal/counters"
	"github.com/stackwatch-systems/stackwatch/internal/handlers"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/logging"
	"github.com/stackwatch-systems/stackwatch/internal/notify"
	"github.com/stackwatch-systems/stackwatch/internal/parser"
	"github.com/stackwatch-systems/stackwatch/internal/pipeline"
	"github.com/stackwatch-systems/stackwatch/internal/ratelimit"
	"github.com/stackwatch-systems/stackwatch/internal/repository"
	"github.com/stackwatch-systems/stackwatch/internal/search"
	"github.com/stackwatch-systems/stackwatch/internal/server"
	"github.com/stackwatch-systems/stackwatch/internal/stacks"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("collector"))
	logging.SetDefault(logger)

	slog.Info("Starting Collector service",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Logging.Level),
		slog.String("log_format", cfg.Logging.Format),
	)

	// Run database migrations
	connString := cfg.Postgres.ConnString()
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database migrations completed")

	// Repository: stack store, plan source, organization resolver
	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	// Shared counter store
	var counterStore counters.Store
	if cfg.Redis.Enabled {
		counterStore, err = counters.NewRedisStore(cfg.Redis.URL)
		if err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v", err)
			log.Println("Falling back to in-process counters; limits will not be shared across instances")
			counterStore = counters.NewMemoryStore()
		}
	} else {
		counterStore = counters.NewMemoryStore()
	}
	defer counterStore.Close()

	tracker := usage.NewTracker(counterStore, repo)

	// Rate limiter with per-plan limits
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		maxFor := func(ctx context.Context, id identity.Identity) int64 {
			if id.OrganizationID != "" {
				if n := tracker.MaxRequestsPerWindow(ctx, id.OrganizationID); n > 0 {
					return n
				}
			}
			if id.IsLoopback() {
				return cfg.RateLimit.LoopbackMax
			}
			return cfg.RateLimit.DefaultMax
		}
		limiter = ratelimit.New(counterStore, cfg.RateLimit.Window, maxFor)
		slog.Info("Rate limiting enabled",
			slog.Int64("default_max", cfg.RateLimit.DefaultMax),
			slog.String("window", cfg.RateLimit.Window.String()),
		)
	} else {
		slog.Info("Rate limiting disabled in configuration")
	}

	gate := admission.New(limiter, tracker, repo, cfg.Submission.Disabled, cfg.Submission.MaxPayloadSize)

	// Format plugin chain, statically registered in priority order
	parserManager := parser.NewManager(
		&parser.V2Plugin{},
		&parser.LegacyPlugin{},
		&parser.TextPlugin{},
	)

	// Event sink
	var eventStore pipeline.EventStore
	if cfg.OpenSearch.Enabled {
		osClient, err := search.NewClient(search.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to create OpenSearch client: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := osClient.Ping(pingCtx); err != nil {
			log.Printf("WARNING: OpenSearch not reachable: %v", err)
			log.Println("Events may fail to index until OpenSearch is available")
		}
		cancel()
		eventStore = osClient
	} else {
		slog.Warn("OpenSearch disabled; events will be classified but not indexed")
		eventStore = pipeline.DiscardEventStore{}
	}

	// Notification publisher
	var notifier notify.Publisher = notify.NoOpPublisher{}
	if cfg.NATS.Enabled {
		natsPublisher, err := notify.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			log.Printf("WARNING: Failed to connect to NATS: %v", err)
			log.Println("Stack notifications will not be published")
		} else {
			notifier = natsPublisher
			defer natsPublisher.Close()
		}
	}

	resolver := stacks.NewResolver(repo)
	pipe := pipeline.New(pipeline.DefaultPlugins(), resolver, eventStore, tracker, notifier, logger)

	identityResolver := identity.NewResolver(cfg.Auth.TokenSecret)
	handler := handlers.NewEventsHandler(parserManager, pipe, tracker, logger)
	router := server.NewRouter(handler, gate, identityResolver)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Collector service listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	slog.Info("Server stopped")
}
