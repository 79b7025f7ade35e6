// Package state provides the file-backed durable cache used by the CLI.
package state

import "time"

// fileVersion is the on-disk format version.
const fileVersion = "1"

// cacheFile is the JSON document stored at the cache path.
type cacheFile struct {
	Version   string            `json:"version"`
	Entries   map[string]string `json:"entries"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func newCacheFile() *cacheFile {
	return &cacheFile{
		Version: fileVersion,
		Entries: map[string]string{},
	}
}
