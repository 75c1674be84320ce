package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
)

var epoch = time.Date(2024, time.March, 5, 13, 0, 0, 0, time.UTC)

func newTestPacer() (*clock.Fake, *clock.Pacer) {
	fake := clock.NewFake(epoch)
	return fake, clock.NewPacer(fake, func() float64 { return 0 })
}

type retryErr struct{ after time.Duration }

func (e *retryErr) Error() string { return fmt.Sprintf("too many requests, retry after %s", e.after) }
func (e *retryErr) RetryDelay() time.Duration { return e.after }

type statusErr struct{ code int }

func (e *statusErr) Error() string { return fmt.Sprintf("status %d", e.code) }
func (e *statusErr) HTTPStatus() int { return e.code }

type staticLinks struct {
	categories []domain.Category
	err        error
	calls      int
}

func (s *staticLinks) Links(context.Context) ([]domain.Category, error) {
	s.calls++
	return s.categories, s.err
}

type pageResult struct {
	listings []domain.Listing
	err      error
}

type scriptedSource map[string]pageResult

func (s scriptedSource) FetchCategory(_ context.Context, c domain.Category) ([]domain.Listing, error) {
	r := s[c.Name]
	return r.listings, r.err
}

type memStore struct {
	mu    sync.Mutex
	sent  map[string]bool
	found map[string]domain.Listing
}

var _ ports.DedupStore = (*memStore)(nil)

func newMemStore(sent ...string) *memStore {
	s := &memStore{sent: map[string]bool{}, found: map[string]domain.Listing{}}
	for _, id := range sent {
		s.sent[id] = true
	}
	return s
}

func (s *memStore) IsSent(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id], nil
}

func (s *memStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[id] = true
	return nil
}

func (s *memStore) MergeDiscovered(_ context.Context, listings []domain.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range listings {
		s.found[l.ID] = l
	}
	return nil
}

func (s *memStore) Discovered(context.Context) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Listing, 0, len(s.found))
	for _, l := range s.found {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) wasSent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[id]
}

type mapEnricher map[string]domain.EnrichedDetail

func (m mapEnricher) Enrich(_ context.Context, l domain.Listing) domain.EnrichedDetail {
	return m[l.ID]
}

type sentMessage struct {
	method string
	body   string
	photos int
}

// recordingMessenger answers each call with the next scripted error, then nil.
type recordingMessenger struct {
	errs  []error
	calls []sentMessage
}

func (m *recordingMessenger) next() error {
	if len(m.errs) == 0 {
		return nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return err
}

func (m *recordingMessenger) SendText(_ context.Context, text string) error {
	m.calls = append(m.calls, sentMessage{method: "text", body: text})
	return m.next()
}

func (m *recordingMessenger) SendPhotos(_ context.Context, caption string, photos []ports.Photo) error {
	m.calls = append(m.calls, sentMessage{method: "photos", body: caption, photos: len(photos)})
	return m.next()
}

func (m *recordingMessenger) methods() []string {
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.method
	}
	return out
}

type stubPhotos struct{}

func (stubPhotos) Download(_ context.Context, urls []string, limit int) []ports.Photo {
	var out []ports.Photo
	for i := range urls {
		if i == limit {
			break
		}
		out = append(out, ports.Photo{Name: fmt.Sprintf("photo%d.jpg", i), Data: []byte{byte(i)}})
	}
	return out
}

var errBoom = errors.New("boom")
