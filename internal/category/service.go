// Package category manages the watched category list and the operator add/remove dialogue.
package category

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"OlxWatcher/internal/domain"
)

var (
	ErrInvalidUID  = errors.New("uid must contain only latin letters, digits, '_' or '-'")
	ErrUIDTaken    = errors.New("uid is already in use")
	ErrForeignURL  = errors.New("url does not point to the watched site")
	ErrEmptyName   = errors.New("category name is empty")
	ErrNotFound    = errors.New("category not found")
	uidExpr        = regexp.MustCompile(`(?i)^[a-z0-9_-]+$`)
	allowedSchemes = map[string]bool{"http": true, "https": true}
)

// Store is the persistence the service needs; storage.LinksStore satisfies it.
type Store interface {
	Links(ctx context.Context) ([]domain.Category, error)
	Names() (map[string]string, error)
	HasUID(uid string) (bool, error)
	Put(name, uid, link string) error
	Delete(name string) (uid string, ok bool, err error)
}

// Entry is one watched category as the operator sees it.
type Entry struct {
	Name string
	UID  string
	URL  string
}

// Service validates and applies category changes.
type Service struct {
	store  Store
	domain string
}

// NewService binds the store to the site domain URLs must belong to.
func NewService(store Store, siteDomain string) *Service {
	return &Service{store: store, domain: strings.ToLower(strings.TrimPrefix(siteDomain, "www."))}
}

// ValidateUID checks the uid alphabet.
func (s *Service) ValidateUID(uid string) error {
	if !uidExpr.MatchString(uid) {
		return ErrInvalidUID
	}
	return nil
}

// ValidateURL requires an absolute http(s) URL on the site domain or a subdomain of it.
func (s *Service) ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !allowedSchemes[strings.ToLower(u.Scheme)] || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrForeignURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	if host != s.domain && !strings.HasSuffix(host, "."+s.domain) {
		return fmt.Errorf("%w: %s", ErrForeignURL, host)
	}
	return nil
}

// Add registers a category; the uid must be unused.
func (s *Service) Add(_ context.Context, name, uid, link string) (Entry, error) {
	name = strings.TrimSpace(name)
	uid = strings.TrimSpace(uid)
	link = strings.TrimSpace(link)

	if name == "" {
		return Entry{}, ErrEmptyName
	}
	if err := s.ValidateUID(uid); err != nil {
		return Entry{}, err
	}
	if err := s.ValidateURL(link); err != nil {
		return Entry{}, err
	}

	taken, err := s.store.HasUID(uid)
	if err != nil {
		return Entry{}, fmt.Errorf("check uid: %w", err)
	}
	if taken {
		return Entry{}, fmt.Errorf("%w: %s", ErrUIDTaken, uid)
	}

	if err := s.store.Put(name, uid, link); err != nil {
		return Entry{}, fmt.Errorf("save category: %w", err)
	}
	return Entry{Name: name, UID: uid, URL: link}, nil
}

// Remove deletes a category by display name and returns its uid.
func (s *Service) Remove(_ context.Context, name string) (string, error) {
	uid, ok, err := s.store.Delete(strings.TrimSpace(name))
	if err != nil {
		return "", fmt.Errorf("delete category: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return uid, nil
}

// List joins names with links, sorted by name. Links without a name are listed under their uid.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	links, err := s.store.Links(ctx)
	if err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	names, err := s.store.Names()
	if err != nil {
		return nil, fmt.Errorf("read names: %w", err)
	}

	byUID := make(map[string]string, len(names))
	for name, uid := range names {
		byUID[uid] = name
	}

	out := make([]Entry, 0, len(links))
	for _, c := range links {
		name, ok := byUID[c.Name]
		if !ok {
			name = c.Name
		}
		out = append(out, Entry{Name: name, UID: c.Name, URL: c.URL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
