// Package config provides configuration loading for yazcar.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for yazcar.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("yazcar")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: YAZCAR_BACKEND_URL
	viper.SetEnvPrefix("YAZCAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

func findConfigFile() string {
	paths := []string{".", DataDir()}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "yazcar"))
		}
	} else {
		paths = append(paths, "/etc/yazcar")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths returns the first yazcar.yaml or yazcar.yml found in paths.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "yazcar"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds nested keys so YAZCAR_CACHE_DRIVER overrides
// cache.driver even when the key is absent from the file.
func bindNestedEnvKeys() {
	for _, key := range []string{
		"backend.url",
		"backend.anon_key",
		"backend.timeout",

		"cache.driver",
		"cache.path",
		"cache.redis_addr",

		"directory.driver",
		"directory.postgres_dsn",

		"server.http_addr",
		"server.database",
		"server.jwt_secret",
		"server.access_token_ttl",
		"server.session_timeout",

		"rate_limit.enabled",
		"rate_limit.attempts",
		"rate_limit.period",
		"rate_limit.burst",
		"rate_limit.cleanup_interval",

		"events.output",
		"events.channel_size",
		"events.batch_size",
		"events.flush_interval",
		"events.buffer_size",

		"log_level",
		"tracing",
		"dev_mode",
	} {
		_ = viper.BindEnv(key)
	}
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and validates.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults,
// but does NOT apply dev defaults or validate.
// Use this when CLI flags may override DevMode before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Running with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
