package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// File names inside the data directory.
const (
	LinksFile = "links.json"
	NamesFile = "data.json"
	FoundFile = "found.json"
	SentFile  = "sent.json"
)

// loadOrReset decodes path with decode. A missing file is created from fallback;
// an undecodable one is logged and rewritten from fallback. The returned flag
// reports that the caller must use its defaults instead of whatever decode produced.
func loadOrReset(path string, fallback any, decode func([]byte) error, logger *slog.Logger) (bool, error) {
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return true, writeJSONAtomic(path, fallback)
	case err != nil:
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	if err := decode(raw); err != nil {
		if logger != nil {
			logger.Warn("state file corrupted, resetting", "file", path, "error", err)
		}
		return true, writeJSONAtomic(path, fallback)
	}
	return false, nil
}

// writeJSONAtomic writes v next to path and renames it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
