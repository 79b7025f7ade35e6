// Package config provides configuration types for the yazcar client and its
// local dev backend.
//
// The client needs only the hosted backend URL and anon key. Everything else
// has a default:
//
//   - cache: where auth_token and user_data survive restarts
//   - directory: where profiles and cars are read from
//   - server, rate_limit, events: the local dev backend
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Cache drivers.
const (
	CacheDriverFile   = "file"
	CacheDriverSQLite = "sqlite"
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Directory drivers.
const (
	DirectoryDriverREST     = "rest"
	DirectoryDriverPostgres = "postgres"
)

// Config is the top-level configuration.
type Config struct {
	// Backend configures the hosted auth and REST backend.
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Cache configures the durable credential cache.
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Directory configures where profiles and cars are looked up.
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`

	// Server configures the local dev backend.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// RateLimit configures sign-in throttling on the dev backend.
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// Events configures the dev backend's sign-in event log.
	Events EventsConfig `yaml:"events" mapstructure:"events"`

	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Tracing exports OpenTelemetry spans and metrics to stderr.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`

	// DevMode points the client at a local dev backend with a fixed key.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// BackendConfig configures the hosted backend.
type BackendConfig struct {
	// URL is the project URL (e.g., "https://abc.supabase.co").
	URL string `yaml:"url" mapstructure:"url" validate:"required,url"`

	// AnonKey is the public anon key sent as apikey on every request.
	AnonKey string `yaml:"anon_key" mapstructure:"anon_key" validate:"required"`

	// Timeout bounds every backend call (e.g., "10s").
	// Defaults to "10s" if not specified.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// CacheConfig configures the credential cache.
type CacheConfig struct {
	// Driver selects the store: file, sqlite, redis or memory.
	// Defaults to "file".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,cache_driver"`

	// Path is the cache file for the file and sqlite drivers.
	// Defaults to ~/.yazcar/credentials.json or ~/.yazcar/yazcar.db.
	Path string `yaml:"path" mapstructure:"path"`

	// RedisAddr is "host:port" or a redis:// URL for the redis driver.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"required_if=Driver redis"`
}

// DirectoryConfig configures profile and car lookups.
type DirectoryConfig struct {
	// Driver selects "rest" (through the backend) or "postgres" (direct).
	// Defaults to "rest".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"required,oneof=rest postgres"`

	// PostgresDSN is the connection string for the postgres driver.
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
}

// ServerConfig configures the dev backend.
type ServerConfig struct {
	// HTTPAddr is the address to listen on. Defaults to "127.0.0.1:54321".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// Database is the sqlite file holding accounts, profiles, cars and sessions.
	// Defaults to ~/.yazcar/backend.db.
	Database string `yaml:"database" mapstructure:"database"`

	// JWTSecret signs access tokens. Required outside dev mode.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`

	// AccessTokenTTL is the access token lifetime (e.g., "1h"). Defaults to "1h".
	AccessTokenTTL string `yaml:"access_token_ttl" mapstructure:"access_token_ttl" validate:"omitempty,duration"`

	// SessionTimeout is the refresh session lifetime (e.g., "720h"). Defaults to "720h".
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout" validate:"omitempty,duration"`
}

// RateLimitConfig configures sign-in throttling.
type RateLimitConfig struct {
	// Enabled turns rate limiting on or off.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Attempts is the number of sign-in attempts allowed per period.
	// Applied per client IP and per email. Defaults to 5.
	Attempts int `yaml:"attempts" mapstructure:"attempts" validate:"omitempty,min=1"`

	// Period is the window Attempts refers to (e.g., "1m"). Defaults to "1m".
	Period string `yaml:"period" mapstructure:"period" validate:"omitempty,duration"`

	// Burst is the number of attempts allowed back to back. Defaults to Attempts.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"omitempty,min=1"`

	// CleanupInterval is how often idle limiter entries are dropped. Defaults to "5m".
	CleanupInterval string `yaml:"cleanup_interval" mapstructure:"cleanup_interval" validate:"omitempty,duration"`
}

// EventsConfig configures the sign-in event log.
type EventsConfig struct {
	// Output is "stdout", "sqlite" (the dev backend database) or
	// "file:///absolute/path/to/events.log". Defaults to "stdout".
	Output string `yaml:"output" mapstructure:"output" validate:"required,event_output"`

	// ChannelSize is the buffer size for queued events. Defaults to 256.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of events to batch before writing. Defaults to 50.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often pending events are written. Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty,duration"`

	// BufferSize is the number of recent events kept in memory for queries.
	// Defaults to 1000.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`
}

// DevBackendURL is the address the client talks to in dev mode.
const DevBackendURL = "http://127.0.0.1:54321"

// DevAnonKey is the anon key the dev backend accepts.
const DevAnonKey = "yazcar-dev-anon-key"

// devJWTSecret signs dev backend tokens when no secret is configured.
const devJWTSecret = "yazcar-dev-jwt-secret-do-not-use-in-production"

// SetDevDefaults points the client at the local dev backend.
// These defaults are applied BEFORE validation so required fields are satisfied.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.Backend.URL == "" {
		c.Backend.URL = DevBackendURL
	}
	if c.Backend.AnonKey == "" {
		c.Backend.AnonKey = DevAnonKey
	}
	if c.Server.JWTSecret == "" {
		c.Server.JWTSecret = devJWTSecret
	}
	c.LogLevel = "debug"
}

// SetDefaults applies default values to the configuration.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.Timeout == "" {
		c.Backend.Timeout = "10s"
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheDriverFile
	}
	if c.Cache.Path == "" {
		switch c.Cache.Driver {
		case CacheDriverFile:
			c.Cache.Path = filepath.Join(DataDir(), "credentials.json")
		case CacheDriverSQLite:
			c.Cache.Path = filepath.Join(DataDir(), "yazcar.db")
		}
	}

	if c.Directory.Driver == "" {
		c.Directory.Driver = DirectoryDriverREST
	}

	// Dev backend binds to localhost only.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:54321"
	}
	if c.Server.Database == "" {
		c.Server.Database = filepath.Join(DataDir(), "backend.db")
	}
	if c.Server.AccessTokenTTL == "" {
		c.Server.AccessTokenTTL = "1h"
	}
	if c.Server.SessionTimeout == "" {
		c.Server.SessionTimeout = "720h"
	}

	// Only apply the default when the user hasn't explicitly set it in YAML/env.
	if !viper.IsSet("rate_limit.enabled") {
		c.RateLimit.Enabled = true
	}
	if c.RateLimit.Attempts == 0 {
		c.RateLimit.Attempts = 5
	}
	if c.RateLimit.Period == "" {
		c.RateLimit.Period = "1m"
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.Attempts
	}
	if c.RateLimit.CleanupInterval == "" {
		c.RateLimit.CleanupInterval = "5m"
	}

	if c.Events.Output == "" {
		c.Events.Output = "stdout"
	}
	if c.Events.ChannelSize == 0 {
		c.Events.ChannelSize = 256
	}
	if c.Events.BatchSize == 0 {
		c.Events.BatchSize = 50
	}
	if c.Events.FlushInterval == "" {
		c.Events.FlushInterval = "1s"
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 1000
	}
}

// DataDir returns ~/.yazcar, or ./.yazcar when the home directory is unknown.
func DataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".yazcar")
	}
	return ".yazcar"
}

// BackendTimeout returns the parsed backend timeout.
func (c *Config) BackendTimeout() time.Duration {
	return parseDuration(c.Backend.Timeout, 10*time.Second)
}

// parseDuration parses s, falling back to def when s is empty or invalid.
// Fields are validated before use, so the fallback only covers zero configs.
func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Durations returns the parsed dev backend durations.
func (s ServerConfig) Durations() (accessTTL, sessionTimeout time.Duration) {
	return parseDuration(s.AccessTokenTTL, time.Hour), parseDuration(s.SessionTimeout, 720*time.Hour)
}

// PeriodDuration returns the parsed rate limit period.
func (r RateLimitConfig) PeriodDuration() time.Duration {
	return parseDuration(r.Period, time.Minute)
}

// CleanupDuration returns the parsed cleanup interval.
func (r RateLimitConfig) CleanupDuration() time.Duration {
	return parseDuration(r.CleanupInterval, 5*time.Minute)
}

// FlushDuration returns the parsed flush interval.
func (e EventsConfig) FlushDuration() time.Duration {
	return parseDuration(e.FlushInterval, time.Second)
}
