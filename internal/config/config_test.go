package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Cache.Driver != CacheDriverFile {
		t.Errorf("Cache.Driver = %q, want %q", cfg.Cache.Driver, CacheDriverFile)
	}
	if filepath.Base(cfg.Cache.Path) != "credentials.json" {
		t.Errorf("Cache.Path = %q, want .../credentials.json", cfg.Cache.Path)
	}
	if cfg.Directory.Driver != DirectoryDriverREST {
		t.Errorf("Directory.Driver = %q, want %q", cfg.Directory.Driver, DirectoryDriverREST)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:54321" {
		t.Errorf("Server.HTTPAddr = %q, want localhost", cfg.Server.HTTPAddr)
	}
	if cfg.Events.Output != "stdout" {
		t.Errorf("Events.Output = %q, want stdout", cfg.Events.Output)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled should default to true")
	}
	if cfg.RateLimit.Attempts != 5 || cfg.RateLimit.Burst != 5 {
		t.Errorf("RateLimit = %+v, want 5 attempts with burst 5", cfg.RateLimit)
	}
	if cfg.BackendTimeout() != 10*time.Second {
		t.Errorf("BackendTimeout() = %v, want 10s", cfg.BackendTimeout())
	}
}

func TestConfig_SetDefaults_SQLiteCachePath(t *testing.T) {
	t.Parallel()

	cfg := Config{Cache: CacheConfig{Driver: CacheDriverSQLite}}
	cfg.SetDefaults()
	if filepath.Base(cfg.Cache.Path) != "yazcar.db" {
		t.Errorf("Cache.Path = %q, want .../yazcar.db", cfg.Cache.Path)
	}

	cfg = Config{Cache: CacheConfig{Driver: CacheDriverMemory}}
	cfg.SetDefaults()
	if cfg.Cache.Path != "" {
		t.Errorf("Cache.Path = %q for the memory driver, want empty", cfg.Cache.Path)
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Backend:   BackendConfig{Timeout: "3s"},
		Server:    ServerConfig{HTTPAddr: ":9090", SessionTimeout: "24h"},
		Events:    EventsConfig{Output: "file:///var/log/yazcar.log"},
		RateLimit: RateLimitConfig{Enabled: true, Attempts: 3, Burst: 1},
	}
	cfg.SetDefaults()

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr was overwritten: got %q", cfg.Server.HTTPAddr)
	}
	if cfg.Events.Output != "file:///var/log/yazcar.log" {
		t.Errorf("Events.Output was overwritten: got %q", cfg.Events.Output)
	}
	if cfg.RateLimit.Attempts != 3 || cfg.RateLimit.Burst != 1 {
		t.Errorf("RateLimit was overwritten: got %+v", cfg.RateLimit)
	}
	if cfg.BackendTimeout() != 3*time.Second {
		t.Errorf("BackendTimeout() = %v, want 3s", cfg.BackendTimeout())
	}
	if _, session := cfg.Server.Durations(); session != 24*time.Hour {
		t.Errorf("session timeout = %v, want 24h", session)
	}
}

func TestConfig_SetDevDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if cfg.Backend.URL != DevBackendURL || cfg.Backend.AnonKey != DevAnonKey {
		t.Errorf("Backend = %+v, want the dev backend", cfg.Backend)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() after dev defaults: %v", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("ValidateServer() after dev defaults: %v", err)
	}

	// Without dev mode nothing is filled in.
	plain := Config{}
	plain.SetDevDefaults()
	if plain.Backend.URL != "" || plain.Server.JWTSecret != "" {
		t.Errorf("SetDevDefaults() changed a non-dev config: %+v", plain)
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"bogus", time.Minute},
		{"-5s", time.Minute},
		{"90s", 90 * time.Second},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"empty dir", nil, ""},
		{"yaml", []string{"yazcar.yaml"}, "yazcar.yaml"},
		{"yml", []string{"yazcar.yml"}, "yazcar.yml"},
		{"ignores binary", []string{"yazcar"}, ""},
		{"prefers yaml", []string{"yazcar.yml", "yazcar.yaml"}, "yazcar.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			for _, f := range tt.files {
				_ = os.WriteFile(filepath.Join(dir, f), []byte("log_level: info\n"), 0o644)
			}
			want := ""
			if tt.want != "" {
				want = filepath.Join(dir, tt.want)
			}
			if got := findConfigFileInPaths([]string{dir}); got != want {
				t.Errorf("findConfigFileInPaths() = %q, want %q", got, want)
			}
		})
	}
}

// Not parallel: viper is process-global.
func TestLoadConfig_FileAndEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "yazcar.yaml")
	yaml := `
backend:
  url: https://abc.supabase.co
  anon_key: anon
cache:
  driver: memory
rate_limit:
  enabled: false
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YAZCAR_BACKEND_TIMEOUT", "4s")
	t.Setenv("YAZCAR_DIRECTORY_DRIVER", "postgres")
	t.Setenv("YAZCAR_DIRECTORY_POSTGRES_DSN", "postgres://localhost/yazcar")

	InitViper(path)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if ConfigFileUsed() != path {
		t.Errorf("ConfigFileUsed() = %q, want %q", ConfigFileUsed(), path)
	}
	if cfg.Cache.Driver != CacheDriverMemory {
		t.Errorf("Cache.Driver = %q, want memory", cfg.Cache.Driver)
	}
	if cfg.BackendTimeout() != 4*time.Second {
		t.Errorf("BackendTimeout() = %v, want 4s from env", cfg.BackendTimeout())
	}
	if cfg.Directory.Driver != DirectoryDriverPostgres || cfg.Directory.PostgresDSN == "" {
		t.Errorf("Directory = %+v, want postgres from env", cfg.Directory)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want explicit false kept")
	}
}

func TestLoadConfig_MissingBackend(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "yazcar.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	InitViper(path)
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() without backend.url succeeded")
	}
}
