package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yazcar/yazcarfax/internal/adapter/outbound/redis"
	"github.com/yazcar/yazcarfax/internal/adapter/outbound/supabase"
	"github.com/yazcar/yazcarfax/internal/config"
	"github.com/yazcar/yazcarfax/internal/service"
)

var (
	resetIncludeBackend bool
	resetForce          bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the local credential cache",
	Long: `Remove the credential cache so the next launch starts signed out.

This does not revoke the session on the backend; use "yazcar logout" for that.

Optional flags:
  --include-backend   Also remove the dev backend database and event log
  --force             Skip confirmation prompt

Examples:
  # Reset the cache (interactive confirmation)
  yazcar reset

  # Reset everything without prompting
  yazcar reset --include-backend --force`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetIncludeBackend, "include-backend", false, "Also remove the dev backend database and event log")
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

type resetTarget struct {
	path string
	desc string
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigForReset()
	if err != nil {
		return err
	}
	stderr := cmd.ErrOrStderr()

	if cfg.Cache.Driver == config.CacheDriverRedis {
		if err := resetRedisCache(cmd.Context(), cfg.Cache.RedisAddr); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Cleared cached credentials in redis at %s\n", cfg.Cache.RedisAddr)
	}

	existing := existingTargets(resetTargets(cfg, resetIncludeBackend))
	if len(existing) == 0 {
		fmt.Fprintln(stderr, "Nothing to reset, no local files found.")
		return nil
	}

	fmt.Fprintln(stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce && !confirm(cmd.InOrStdin(), stderr) {
		fmt.Fprintln(stderr, "Aborted.")
		return nil
	}

	var failed int
	for _, t := range existing {
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(stderr, "  ERROR removing %s: %v\n", t.path, err)
			failed++
		} else {
			fmt.Fprintf(stderr, "  Removed %s\n", t.path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be removed", failed)
	}

	fmt.Fprintln(stderr, "\nReset complete. The next launch starts signed out.")
	return nil
}

// loadConfigForReset loads the config without validation so a broken
// config can still be reset.
func loadConfigForReset() (*config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	return cfg, nil
}

// resetTargets lists the files that hold local state for cfg.
func resetTargets(cfg *config.Config, includeBackend bool) []resetTarget {
	var targets []resetTarget
	switch cfg.Cache.Driver {
	case config.CacheDriverFile:
		targets = append(targets,
			resetTarget{cfg.Cache.Path, "credential cache"},
			resetTarget{cfg.Cache.Path + ".bak", "credential cache backup"},
			resetTarget{cfg.Cache.Path + ".lock", "credential cache lock"},
		)
	case config.CacheDriverSQLite:
		targets = append(targets, sqliteTargets(cfg.Cache.Path, "credential cache")...)
	}

	if includeBackend {
		targets = append(targets, sqliteTargets(cfg.Server.Database, "dev backend database")...)
		if path := parseFileURI(cfg.Events.Output); path != "" {
			targets = append(targets, resetTarget{path, "event log"})
		}
	}
	return targets
}

func sqliteTargets(path, desc string) []resetTarget {
	return []resetTarget{
		{path, desc},
		{path + "-wal", desc + " WAL"},
		{path + "-shm", desc + " shared memory"},
	}
}

func existingTargets(targets []resetTarget) []resetTarget {
	var existing []resetTarget
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	return existing
}

func resetRedisCache(ctx context.Context, addr string) error {
	kv, err := redis.New(ctx, addr)
	if err != nil {
		return fmt.Errorf("open redis cache: %w", err)
	}
	defer func() { _ = kv.Close() }()
	if err := kv.RemoveMany(ctx, service.KeyAuthToken, service.KeyUserData, supabase.SessionStorageKey); err != nil {
		return fmt.Errorf("clear redis cache: %w", err)
	}
	return nil
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\nProceed? [y/N] ")
	var answer string
	_, _ = fmt.Fscanln(in, &answer)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

// parseFileURI extracts the file path from a "file:///path" URI.
// On Windows, handles file:///C:/path → C:/path (strips extra leading slash).
func parseFileURI(uri string) string {
	const prefix = "file://"
	if len(uri) > len(prefix) && uri[:len(prefix)] == prefix {
		path := uri[len(prefix):]
		if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
		return path
	}
	return ""
}
