// Package cmd provides the CLI commands for yazcar.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yazcar/yazcarfax/internal/config"
)

var cfgFile string
var devMode bool

var rootCmd = &cobra.Command{
	Use:   "yazcar",
	Short: "YazCar - vehicle history client",
	Long: `yazcar signs you in to YazCar, keeps your session across restarts and
lands you on the dashboard for your role.

Quick start:
  1. Run the local backend: yazcar backend serve --dev
  2. Seed it:               yazcar backend seed --dev fixtures.yaml
  3. Sign in:               yazcar login --dev --email admin@yazcar.test

Configuration:
  Config is loaded from yazcar.yaml in the current directory,
  $HOME/.yazcar/, or /etc/yazcar/.

  Environment variables can override config values with the YAZCAR_ prefix.
  Example: YAZCAR_BACKEND_URL=https://abc.supabase.co

Commands:
  launch         Restore the saved session and show the landing screen
  login          Sign in with email and password
  logout         Sign out
  status         Show the authentication status
  whoami         Show the signed-in profile
  scan           Look cars up by scanned QR code
  reset          Remove the local credential cache
  backend        Run the local dev backend
  hash-password  Hash a password for a seed file
  version        Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command. The first Ctrl+C cancels the running
// command; a second one exits immediately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./yazcar.yaml)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Use the local dev backend (debug logging, fixed keys)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// loadConfig loads the configuration, applies --dev and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger. Stdout is kept for command output.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if cfg.DevMode {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Debug("log level configured", "level", cfg.LogLevel, "effective", level.String())
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Debug("loaded config", "file", configFile)
	}
	return logger
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
