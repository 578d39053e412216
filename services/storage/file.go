// Package storage writes result documents to disk.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dealmungchi/reviewcrawler/helpers"
	"github.com/dealmungchi/reviewcrawler/logger"
)

// FileStore writes JSON documents into one directory
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory the store writes into
func (s *FileStore) Dir() string {
	return s.dir
}

// ResultName builds "<company>_<source>_<unix millis>" with the company name
// made filesystem safe.
func ResultName(company, source string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", helpers.SanitizeFilename(company), helpers.SanitizeFilename(source), at.UnixMilli())
}

// Save writes v as indented JSON to <dir>/<name>.json and returns the path.
// The file is written to a temporary name first and renamed into place.
func (s *FileStore) Save(name string, v any) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	path := filepath.Join(s.dir, helpers.SanitizeFilename(name)+".json")
	tmp, err := os.CreateTemp(s.dir, ".result-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move result into place: %w", err)
	}

	logger.ForComponent("storage").Debug().Str("path", path).Int("bytes", len(b)).Msg("Saved result")
	return path, nil
}
