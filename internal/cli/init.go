// Package cli provides common initialization for the approva command:
// env loading, logger setup, config validation and the wiring of the
// gateway, store, session and caches.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"approva/internal/api"
	"approva/internal/cache"
	"approva/internal/config"
	"approva/internal/log"
	"approva/internal/session"
	"approva/internal/store"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger initializes structured logging on stderr so command output
// on stdout stays clean.
func SetupLogger(verbose bool) *log.Logger {
	cfg := log.DefaultConfig()
	if verbose {
		cfg = log.Config{Level: slog.LevelDebug, Component: log.ComponentApp}
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg
}

// App bundles the wired client components every subcommand needs.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Gateway *api.Gateway
	Session *session.Manager
	Store   store.Store
	Caches  *cache.Manager
}

// NewApp wires the full client: store, gateway and session bound to each
// other, plus the cache cleanup manager. Hydration is attempted but a
// failed restore only leaves the session unauthenticated.
func NewApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	st, err := store.New(store.Options{Backend: cfg.StoreBackend, Path: cfg.StorePath})
	if err != nil {
		return nil, err
	}

	gw := api.NewGateway(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	sess := session.NewManager(st, gw, logger)
	gw.BindSession(sess)

	if err := sess.Hydrate(ctx); err != nil {
		logger.WarnContext(ctx, "session restore failed", log.FieldError, err.Error())
	}

	caches := cache.NewManager()
	caches.StartCleanup(time.Minute)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Gateway: gw,
		Session: sess,
		Store:   st,
		Caches:  caches,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	a.Caches.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("close store failed", log.FieldError, err.Error())
	}
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, used by
// the long-running subcommands.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
