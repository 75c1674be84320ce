// Package export bundles the state files into a zip archive and optionally ships it to S3.
package export

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"OlxWatcher/internal/infrastructure/storage"
)

// ErrNothingToExport is returned when none of the state files exist.
var ErrNothingToExport = errors.New("nothing to export")

// Files lists the exported state files in archive order.
var Files = []string{storage.LinksFile, storage.NamesFile, storage.FoundFile, storage.SentFile}

// Build writes a zip of the state files found in dataDir to w and returns the archived names.
// Missing files are skipped.
func Build(dataDir string, w io.Writer) ([]string, error) {
	type entry struct {
		name string
		data []byte
	}

	var entries []entry
	for _, name := range Files {
		data, err := os.ReadFile(filepath.Join(dataDir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		entries = append(entries, entry{name: name, data: data})
	}
	if len(entries) == 0 {
		return nil, ErrNothingToExport
	}

	zw := zip.NewWriter(w)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		f, err := zw.Create(e.name)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := f.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
		names = append(names, e.name)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return names, nil
}

// WriteFile builds the archive at path. Nothing is created when there is nothing to export.
func WriteFile(dataDir, path string) ([]string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	names, err := Build(dataDir, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp archive: %w", closeErr)
	}
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("move archive: %w", err)
	}
	return names, nil
}
