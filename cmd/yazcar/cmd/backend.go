package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/yazcar/yazcarfax/internal/adapter/inbound/http"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/memory"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/sqlite"
	"github.com/yazcar/yazcarfax/internal/config"
	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/authevent"
	"github.com/yazcar/yazcarfax/internal/domain/authsession"
	"github.com/yazcar/yazcarfax/internal/domain/ratelimit"
	"github.com/yazcar/yazcarfax/internal/service"
	"github.com/yazcar/yazcarfax/internal/telemetry"
)

// tokenIssuer is the iss claim of dev backend tokens.
const tokenIssuer = "yazcar-dev"

var backendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Run the local dev backend",
	Long: `The dev backend is a local stand-in for the hosted auth and REST
services. It keeps accounts, profiles, cars and sessions in a sqlite file.`,
}

var backendServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dev backend until interrupted",
	Long: `Serve the auth and REST endpoints the client uses, plus /health and
/metrics.

Examples:
  # Development keys, debug logging
  yazcar backend serve --dev

  # Custom address
  YAZCAR_SERVER_HTTP_ADDR=127.0.0.1:9000 yazcar backend serve --dev`,
	Args: cobra.NoArgs,
	RunE: runBackendServe,
}

func init() {
	backendCmd.AddCommand(backendServeCmd)
	rootCmd.AddCommand(backendCmd)
}

// loadServerConfig loads and validates the config for the dev backend.
// The backend URL defaults to the listen address so a server-only config
// needs no backend section.
func loadServerConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = "http://" + cfg.Server.HTTPAddr
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func runBackendServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServerConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	ctx := cmd.Context()

	if cfg.Tracing {
		shutdown, err := telemetry.Setup(ctx, telemetry.Options{ServiceName: "yazcar-backend", Version: Version, Writer: os.Stderr})
		if err != nil {
			return fmt.Errorf("set up telemetry: %w", err)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	if err := serveBackend(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("dev backend stopped")
	return nil
}

// serveBackend wires the dev backend for cfg and serves until ctx ends.
func serveBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sqlite.Open(ctx, cfg.Server.Database)
	if err != nil {
		return fmt.Errorf("open backend database: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("opened backend database", "path", db.Path())

	accessTTL, sessionTimeout := cfg.Server.Durations()
	sessionStore := sqlite.NewSessionStore(db)
	sessions := authsession.NewService(sessionStore, authsession.Config{Timeout: sessionTimeout})
	issuer := auth.NewTokenIssuer(cfg.Server.JWTSecret, tokenIssuer, accessTTL)

	eventStore, err := createEventStore(cfg, db, logger)
	if err != nil {
		return err
	}
	events := service.NewAuthEventService(eventStore, logger,
		service.WithChannelSize(cfg.Events.ChannelSize),
		service.WithBatchSize(cfg.Events.BatchSize),
		service.WithFlushInterval(cfg.Events.FlushDuration()),
	)
	events.Start(ctx)
	defer func() {
		events.Stop()
		if err := eventStore.Close(); err != nil {
			logger.Warn("failed to close event store", "error", err)
		}
	}()

	period := cfg.RateLimit.PeriodDuration()
	limiter := memory.NewRateLimiter(memory.WithCleanup(cfg.RateLimit.CleanupDuration(), period))
	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	opts := []apihttp.BackendOption{apihttp.WithEvents(events)}
	if cfg.RateLimit.Enabled {
		opts = append(opts, apihttp.WithRateLimit(limiter, ratelimit.RateLimitConfig{
			Rate:   cfg.RateLimit.Attempts,
			Burst:  cfg.RateLimit.Burst,
			Period: period,
		}))
	} else {
		logger.Warn("sign-in rate limiting is disabled")
	}
	backend := apihttp.NewBackend(sqlite.NewAccountStore(db), sqlite.NewDirectory(db), sessions, issuer, opts...)

	srv := apihttp.NewServer(backend, cfg.Backend.AnonKey,
		apihttp.MetricsSources{EventDrops: events.DroppedEvents, RateLimitKeys: limiter.Size},
		apihttp.WithAddr(cfg.Server.HTTPAddr),
		apihttp.WithLogger(logger),
		apihttp.WithHealthChecker(apihttp.NewHealthChecker(db, limiter, events, Version)),
	)

	printBanner(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		purgeExpiredSessions(gctx, sessionStore, cfg.RateLimit.CleanupDuration(), logger)
		return nil
	})
	return g.Wait()
}

// purgeExpiredSessions deletes expired sessions every interval until ctx ends.
func purgeExpiredSessions(ctx context.Context, store *sqlite.SessionStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}

// createEventStore creates the auth event store configured by cfg.
func createEventStore(cfg *config.Config, db *sqlite.DB, logger *slog.Logger) (authevent.Store, error) {
	switch {
	case cfg.Events.Output == "stdout":
		logger.Debug("event output: stdout", "buffer_size", cfg.Events.BufferSize)
		return memory.NewEventStore(os.Stdout, cfg.Events.BufferSize), nil

	case cfg.Events.Output == "sqlite":
		logger.Debug("event output: sqlite", "path", db.Path())
		return sqlite.NewEventStore(db), nil

	case strings.HasPrefix(cfg.Events.Output, "file://"):
		path := parseFileURI(cfg.Events.Output)
		if path == "" {
			return nil, fmt.Errorf("invalid event file URI: %s", cfg.Events.Output)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open event file %s: %w", path, err)
		}
		logger.Debug("event output: file", "path", path, "buffer_size", cfg.Events.BufferSize)
		return memory.NewEventStore(f, cfg.Events.BufferSize), nil

	default:
		return nil, fmt.Errorf("invalid event output: %s (must be 'stdout', 'sqlite' or 'file://path')", cfg.Events.Output)
	}
}

// printBanner prints the dev backend's address and mode to stderr.
func printBanner(cfg *config.Config) {
	const (
		reset  = "\033[0m"
		bold   = "\033[1m"
		cyan   = "\033[36m"
		green  = "\033[32m"
		yellow = "\033[33m"
		dim    = "\033[2m"
	)

	modeStr := green + "configured keys" + reset
	if cfg.DevMode {
		modeStr = yellow + "development" + reset + dim + " (fixed keys)" + reset
	}
	limitStr := "off"
	if cfg.RateLimit.Enabled {
		limitStr = fmt.Sprintf("%d per %s", cfg.RateLimit.Attempts, cfg.RateLimit.Period)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  %s%s YazCar dev backend %s%s\n", bold, cyan, Version, reset)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "  %-14s http://%s\n", "URL:", cfg.Server.HTTPAddr)
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", "Mode:", modeStr)
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", "Database:", cfg.Server.Database)
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", "Sign-in limit:", limitStr)
	fmt.Fprintf(os.Stderr, "  %-14s %s\n", "Events:", cfg.Events.Output)
	fmt.Fprintf(os.Stderr, "  %s─────────────────────────────────────%s\n", dim, reset)
	fmt.Fprintf(os.Stderr, "\n")
}
