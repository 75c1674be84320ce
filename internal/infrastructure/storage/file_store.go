package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
)

type foundDocument struct {
	Adds []domain.Listing `json:"adds"`
}

type sentDocument struct {
	SentAdIDs []string `json:"sentAdIds"`
}

// FileStore keeps discovered and sent listings in found.json and sent.json.
// Every mutation is written to disk before the call returns.
type FileStore struct {
	mu        sync.Mutex
	foundPath string
	sentPath  string

	found    []domain.Listing
	foundIdx map[string]int
	sent     []string
	sentSet  map[string]struct{}

	logger *slog.Logger
}

var _ ports.DedupStore = (*FileStore)(nil)

// OpenFileStore loads state from dir, creating or repairing files as needed.
func OpenFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		foundPath: filepath.Join(dir, FoundFile),
		sentPath:  filepath.Join(dir, SentFile),
		foundIdx:  map[string]int{},
		sentSet:   map[string]struct{}{},
		logger:    logger,
	}
	if err := s.loadFound(); err != nil {
		return nil, err
	}
	if err := s.loadSent(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) loadFound() error {
	var doc foundDocument
	reset, err := loadOrReset(s.foundPath, foundDocument{Adds: []domain.Listing{}}, func(raw []byte) error {
		return json.Unmarshal(raw, &doc)
	}, s.logger)
	if err != nil {
		return fmt.Errorf("load discovered: %w", err)
	}
	if reset {
		return nil
	}
	for _, listing := range doc.Adds {
		s.found = upsertListing(s.found, s.foundIdx, listing)
	}
	return nil
}

func (s *FileStore) loadSent() error {
	var doc sentDocument
	reset, err := loadOrReset(s.sentPath, sentDocument{SentAdIDs: []string{}}, func(raw []byte) error {
		return json.Unmarshal(raw, &doc)
	}, s.logger)
	if err != nil {
		return fmt.Errorf("load sent: %w", err)
	}
	if reset {
		return nil
	}
	for _, id := range doc.SentAdIDs {
		if _, ok := s.sentSet[id]; ok || id == "" {
			continue
		}
		s.sentSet[id] = struct{}{}
		s.sent = append(s.sent, id)
	}
	return nil
}

func (s *FileStore) IsSent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sentSet[id]
	return ok, nil
}

// MarkSent is idempotent: an id already present does not touch the file.
// Memory changes only after the file is written.
func (s *FileStore) MarkSent(_ context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sentSet[id]; ok {
		return nil
	}
	next := append(slices.Clip(s.sent), id)
	if err := writeJSONAtomic(s.sentPath, sentDocument{SentAdIDs: next}); err != nil {
		return fmt.Errorf("persist sent: %w", err)
	}
	s.sent = next
	s.sentSet[id] = struct{}{}
	return nil
}

// MergeDiscovered upserts listings by id (last seen wins) and persists the full set.
// Memory changes only after the file is written.
func (s *FileStore) MergeDiscovered(_ context.Context, listings []domain.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found := slices.Clone(s.found)
	idx := maps.Clone(s.foundIdx)
	for _, listing := range listings {
		found = upsertListing(found, idx, listing)
	}
	if err := writeJSONAtomic(s.foundPath, foundDocument{Adds: found}); err != nil {
		return fmt.Errorf("persist discovered: %w", err)
	}
	s.found, s.foundIdx = found, idx
	return nil
}

func (s *FileStore) Discovered(_ context.Context) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Listing, len(s.found))
	copy(out, s.found)
	return out, nil
}

func upsertListing(found []domain.Listing, idx map[string]int, listing domain.Listing) []domain.Listing {
	if listing.ID == "" {
		return found
	}
	if i, ok := idx[listing.ID]; ok {
		found[i] = listing
		return found
	}
	idx[listing.ID] = len(found)
	return append(found, listing)
}
