package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yazcar/yazcarfax/internal/adapter/inbound/cli"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/memory"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/postgres"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/redis"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/sqlite"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/state"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/supabase"
	"github.com/yazcar/yazcarfax/internal/config"
	"github.com/yazcar/yazcarfax/internal/domain/auth"
	"github.com/yazcar/yazcarfax/internal/domain/routing"
	"github.com/yazcar/yazcarfax/internal/domain/session"
	"github.com/yazcar/yazcarfax/internal/domain/vehicle"
	"github.com/yazcar/yazcarfax/internal/port/outbound"
	"github.com/yazcar/yazcarfax/internal/service"
	"github.com/yazcar/yazcarfax/internal/telemetry"
)

// directory serves both profile and car lookups.
type directory interface {
	auth.ProfileDirectory
	vehicle.Directory
}

// clientApp is one running client: cache, backend clients, session store,
// routing gate and terminal.
type clientApp struct {
	cfg       *config.Config
	logger    *slog.Logger
	kv        outbound.KeyValueStore
	auth      *supabase.AuthClient
	directory directory
	gateway   *service.AuthGateway
	nav       *cli.Navigator
	manager   *service.SessionManager

	closers []func() error
}

// newClientApp wires the client for cfg. Screens are rendered on out.
func newClientApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (_ *clientApp, err error) {
	app := &clientApp{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if cfg.Tracing {
		shutdown, err := telemetry.Setup(ctx, telemetry.Options{
			ServiceName: "yazcar",
			Version:     Version,
			Writer:      os.Stderr,
		})
		if err != nil {
			return nil, fmt.Errorf("set up telemetry: %w", err)
		}
		app.closers = append(app.closers, func() error { return shutdown(context.Background()) })
	}

	app.kv, err = app.openCache(ctx)
	if err != nil {
		return nil, err
	}

	clientOpts := []supabase.ClientOption{
		supabase.WithTimeout(cfg.BackendTimeout()),
		supabase.WithLogger(logger),
	}
	app.auth = supabase.NewAuthClient(cfg.Backend.URL, cfg.Backend.AnonKey, app.kv, clientOpts...)

	app.directory, err = app.openDirectory(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	app.gateway = service.NewAuthGateway(app.auth, app.directory, app.kv,
		service.WithBackendTimeout(cfg.BackendTimeout()),
		service.WithGatewayLogger(logger),
	)

	app.nav = cli.NewNavigator(out)
	gate := routing.NewGate(app.nav, routing.WithLogger(logger))
	app.manager = service.NewSessionManager(app.gateway, session.NewStore(), gate, logger)
	app.closers = append(app.closers, func() error { app.manager.Close(); return nil })
	app.nav.Mount()
	return app, nil
}

func (a *clientApp) openCache(ctx context.Context) (outbound.KeyValueStore, error) {
	switch a.cfg.Cache.Driver {
	case config.CacheDriverFile:
		a.logger.Debug("credential cache: file", "path", a.cfg.Cache.Path)
		return state.NewFileKVStore(a.cfg.Cache.Path, a.logger), nil

	case config.CacheDriverSQLite:
		db, err := sqlite.Open(ctx, a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open credential cache: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.logger.Debug("credential cache: sqlite", "path", db.Path())
		return sqlite.NewKVStore(db), nil

	case config.CacheDriverRedis:
		kv, err := redis.New(ctx, a.cfg.Cache.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("open credential cache: %w", err)
		}
		a.closers = append(a.closers, kv.Close)
		a.logger.Debug("credential cache: redis", "addr", a.cfg.Cache.RedisAddr)
		return kv, nil

	case config.CacheDriverMemory:
		a.logger.Debug("credential cache: memory (not persisted)")
		return memory.NewKVStore(), nil

	default:
		return nil, fmt.Errorf("unknown cache driver %q", a.cfg.Cache.Driver)
	}
}

func (a *clientApp) openDirectory(ctx context.Context, opts []supabase.ClientOption) (directory, error) {
	switch a.cfg.Directory.Driver {
	case config.DirectoryDriverREST:
		return supabase.NewRestClient(a.cfg.Backend.URL, a.cfg.Backend.AnonKey, a.auth.AccessToken, opts...), nil

	case config.DirectoryDriverPostgres:
		dir, err := postgres.Open(ctx, a.cfg.Directory.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open directory: %w", err)
		}
		a.closers = append(a.closers, dir.Close)
		return dir, nil

	default:
		return nil, fmt.Errorf("unknown directory driver %q", a.cfg.Directory.Driver)
	}
}

// Close releases everything newClientApp opened, newest first.
func (a *clientApp) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// withClient loads the config, runs fn with a wired client and closes it.
func withClient(ctx context.Context, out io.Writer, fn func(ctx context.Context, app *clientApp) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	app, err := newClientApp(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Warn("failed to close client", "error", cerr)
		}
	}()
	return fn(ctx, app)
}
