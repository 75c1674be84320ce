// Package observer carries structured pipeline events to logs, metrics and subscribers.
package observer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Kind names a pipeline event.
type Kind string

const (
	CycleStarted       Kind = "cycle-started"
	CycleFinished      Kind = "cycle-finished"
	CategoryFailed     Kind = "category-failed"
	ListingDiscovered  Kind = "listing-discovered"
	ListingSuppressed  Kind = "listing-suppressed"
	EnrichmentDegraded Kind = "enrichment-degraded"
	DeliverySent       Kind = "delivery-sent"
	DeliveryRetried    Kind = "delivery-retried"
	DeliveryFailed     Kind = "delivery-failed"
)

// Event is one observation. Unused fields stay zero.
type Event struct {
	Kind      Kind
	At        time.Time
	RunID     string
	Category  string
	ListingID string
	// Count is the number of listings for discovery and cycle events.
	Count    int
	Duration time.Duration
	Err      error
}

// Observer receives pipeline events. Implementations must not block for long.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// Multi fans an event out to every observer.
type Multi []Observer

func (m Multi) Observe(ctx context.Context, e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(ctx, e)
		}
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Observe(context.Context, Event) {}

// SlogSink writes one log record per event.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink logs through logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{logger: logger}
}

func (s *SlogSink) Observe(ctx context.Context, e Event) {
	if s.logger == nil {
		return
	}

	attrs := []slog.Attr{slog.String("event", string(e.Kind))}
	if e.RunID != "" {
		attrs = append(attrs, slog.String("run_id", e.RunID))
	}
	if e.Category != "" {
		attrs = append(attrs, slog.String("category", e.Category))
	}
	if e.ListingID != "" {
		attrs = append(attrs, slog.String("listing_id", e.ListingID))
	}
	if e.Count > 0 {
		attrs = append(attrs, slog.Int("count", e.Count))
	}
	if e.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", e.Duration))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	s.logger.LogAttrs(ctx, levelFor(e.Kind), string(e.Kind), attrs...)
}

func levelFor(k Kind) slog.Level {
	switch k {
	case CategoryFailed, DeliveryFailed:
		return slog.LevelError
	case EnrichmentDegraded, DeliveryRetried:
		return slog.LevelWarn
	case ListingDiscovered:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Recorder keeps events in memory; tests assert on it.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything observed so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the observed kinds in order.
func (r *Recorder) Kinds() []Kind {
	events := r.Events()
	out := make([]Kind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many events of kind were observed.
func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
