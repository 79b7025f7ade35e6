package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/yazcar/yazcarfax/internal/port/outbound"
)

// ErrCorruptFile is returned when neither the cache file nor its backup parse.
var ErrCorruptFile = errors.New("cache file is corrupt")

// FileKVStore is a key-value store kept in a single JSON file.
// It provides atomic writes (write-tmp-then-rename), automatic backups and
// file locking (flock for cross-process, mutex for in-process). Every write,
// including SetMany and RemoveMany, replaces the whole file in one rename, so
// readers never see half of a batch.
type FileKVStore struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileKVStore creates a store at path. The parent directory is created
// on first write.
func NewFileKVStore(path string, logger *slog.Logger) *FileKVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileKVStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the configured file path.
func (s *FileKVStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	f, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := f.Entries[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *FileKVStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// Remove deletes key.
func (s *FileKVStore) Remove(ctx context.Context, key string) error {
	return s.RemoveMany(ctx, key)
}

// SetMany stores every pair in a single file replacement.
func (s *FileKVStore) SetMany(ctx context.Context, pairs map[string]string) error {
	return s.mutate(ctx, func(f *cacheFile) bool {
		for k, v := range pairs {
			f.Entries[k] = v
		}
		return len(pairs) > 0
	})
}

// RemoveMany deletes every key in a single file replacement.
func (s *FileKVStore) RemoveMany(ctx context.Context, keys ...string) error {
	return s.mutate(ctx, func(f *cacheFile) bool {
		changed := false
		for _, k := range keys {
			if _, ok := f.Entries[k]; ok {
				delete(f.Entries, k)
				changed = true
			}
		}
		return changed
	})
}

// Clear deletes the cache file and its backup.
func (s *FileKVStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range []string{s.path, s.path + ".bak"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// load reads the cache file, falling back to the backup when the primary
// does not parse. A missing file is an empty cache.
func (s *FileKVStore) load() (*cacheFile, error) {
	f, err := s.readFile(s.path)
	if err == nil {
		return f, nil
	}
	if os.IsNotExist(err) {
		return newCacheFile(), nil
	}
	if !errors.Is(err, ErrCorruptFile) {
		return nil, err
	}

	s.logger.Warn("cache file does not parse, trying backup", "path", s.path, "error", err)
	bak, bakErr := s.readFile(s.path + ".bak")
	if bakErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptFile, s.path)
	}
	return bak, nil
}

func (s *FileKVStore) readFile(path string) (*cacheFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Skip on Windows where Unix file permission bits are not supported.
	if runtime.GOOS != "windows" {
		if info, statErr := os.Stat(path); statErr == nil {
			mode := info.Mode().Perm()
			if mode&0077 != 0 {
				s.logger.Warn("cache file has too-open permissions, should be 0600",
					"path", path, "current_mode", fmt.Sprintf("%04o", mode))
			}
		}
	}

	f := newCacheFile()
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	if f.Entries == nil {
		f.Entries = map[string]string{}
	}
	return f, nil
}

// mutate applies fn to the current contents and saves the result.
//
// The write sequence is:
//  1. Acquire in-process mutex
//  2. Lock path+".lock" across processes
//  3. Load current contents and apply fn
//  4. Write to path+".tmp" with 0600 permissions, fsync, rename over path
//  5. Write the same contents to path+".bak"
func (s *FileKVStore) mutate(ctx context.Context, fn func(*cacheFile) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = lockFile.Close() }()

	if err := lockExclusive(lockFile); err != nil {
		return fmt.Errorf("acquire file lock: %w", err)
	}
	defer func() { _ = unlock(lockFile) }()

	f, err := s.load()
	if err != nil {
		// A corrupt cache is rewritten from scratch; it only mirrors the backend.
		if !errors.Is(err, ErrCorruptFile) {
			return err
		}
		s.logger.Warn("discarding corrupt cache file", "path", s.path)
		f = newCacheFile()
	}
	if !fn(f) {
		return nil
	}
	f.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	data = append(data, '\n')

	if err := s.writeAtomic(data); err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		s.logger.Warn("failed to set permissions on cache file", "error", err)
	}
	// The backup mirrors what was just written, so removed keys stay removed.
	if err := os.WriteFile(s.path+".bak", data, 0600); err != nil {
		s.logger.Warn("failed to write backup", "error", err)
	}

	s.logger.Debug("cache saved", "path", s.path, "entries", len(f.Entries))
	return nil
}

// writeAtomic writes data to a temp file, fsyncs it, and renames it
// over the target path. On any error the temp file is cleaned up.
func (s *FileKVStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to cache: %w", err)
	}
	return nil
}

var _ outbound.BatchKeyValueStore = (*FileKVStore)(nil)
