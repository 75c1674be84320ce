package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
)

type linksDocument struct {
	Links map[string]string `json:"links"`
}

// LinksStore manages links.json (uid -> url) and data.json (display name -> uid).
// Files are re-read on every call so edits from the CLI reach a running loop.
type LinksStore struct {
	mu        sync.Mutex
	linksPath string
	namesPath string
	logger    *slog.Logger
}

var _ ports.CategoryLinks = (*LinksStore)(nil)

// OpenLinksStore creates missing files in dir.
func OpenLinksStore(dir string, logger *slog.Logger) (*LinksStore, error) {
	s := &LinksStore{
		linksPath: filepath.Join(dir, LinksFile),
		namesPath: filepath.Join(dir, NamesFile),
		logger:    logger,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.readLinks(); err != nil {
		return nil, err
	}
	if _, err := s.readNames(); err != nil {
		return nil, err
	}
	return s, nil
}

// Links returns the watched categories ordered by uid.
func (s *LinksStore) Links(_ context.Context) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.readLinks()
	if err != nil {
		return nil, err
	}

	categories := make([]domain.Category, 0, len(links))
	for uid, link := range links {
		categories = append(categories, domain.Category{Name: uid, URL: link})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// Names returns the display name -> uid mapping.
func (s *LinksStore) Names() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readNames()
}

// HasUID reports whether uid already has a link.
func (s *LinksStore) HasUID(uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.readLinks()
	if err != nil {
		return false, err
	}
	_, ok := links[uid]
	return ok, nil
}

// Put stores uid -> link and name -> uid in both files.
func (s *LinksStore) Put(name, uid, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.readLinks()
	if err != nil {
		return err
	}
	names, err := s.readNames()
	if err != nil {
		return err
	}

	links[uid] = link
	names[name] = uid

	if err := writeJSONAtomic(s.linksPath, linksDocument{Links: links}); err != nil {
		return fmt.Errorf("persist links: %w", err)
	}
	if err := writeJSONAtomic(s.namesPath, names); err != nil {
		return fmt.Errorf("persist names: %w", err)
	}
	return nil
}

// Delete removes the named category and returns its uid; ok is false when unknown.
func (s *LinksStore) Delete(name string) (uid string, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.readNames()
	if err != nil {
		return "", false, err
	}
	uid, ok = names[name]
	if !ok {
		return "", false, nil
	}
	links, err := s.readLinks()
	if err != nil {
		return "", false, err
	}

	delete(names, name)
	delete(links, uid)

	if err := writeJSONAtomic(s.linksPath, linksDocument{Links: links}); err != nil {
		return "", false, fmt.Errorf("persist links: %w", err)
	}
	if err := writeJSONAtomic(s.namesPath, names); err != nil {
		return "", false, fmt.Errorf("persist names: %w", err)
	}
	return uid, true, nil
}

// readLinks accepts both {"links": {...}} and a bare {uid: url} object.
func (s *LinksStore) readLinks() (map[string]string, error) {
	var links map[string]string
	reset, err := loadOrReset(s.linksPath, linksDocument{Links: map[string]string{}}, func(raw []byte) error {
		parsed, err := decodeLinks(raw)
		links = parsed
		return err
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	if reset || links == nil {
		return map[string]string{}, nil
	}
	return links, nil
}

func (s *LinksStore) readNames() (map[string]string, error) {
	var names map[string]string
	reset, err := loadOrReset(s.namesPath, map[string]string{}, func(raw []byte) error {
		return json.Unmarshal(raw, &names)
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("load names: %w", err)
	}
	if reset || names == nil {
		return map[string]string{}, nil
	}
	return names, nil
}

func decodeLinks(raw []byte) (map[string]string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}

	if nested, ok := envelope["links"]; ok {
		var links map[string]string
		if err := json.Unmarshal(nested, &links); err == nil {
			return links, nil
		}
	}

	var bare map[string]string
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, errors.New("links file is neither {\"links\": {...}} nor a flat object")
	}
	return bare, nil
}
