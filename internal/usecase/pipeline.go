package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/formatter"
	"OlxWatcher/internal/observer"
	"OlxWatcher/internal/ports"
)

// Pacing holds the randomized delays inserted between network calls.
type Pacing struct {
	PreFetch          clock.Window
	BetweenDeliveries clock.Window
	BetweenCategories clock.Window
	CategoryBackoff   clock.Window
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Links      ports.CategoryLinks
	Source     ports.ListingSource
	Store      ports.DedupStore
	Archive    ports.ListingArchive
	Enricher   ports.Enricher
	Policy     *formatter.Policy
	Dispatcher *Dispatcher
	Pacer      *clock.Pacer
	Observer   observer.Observer
	Logger     *slog.Logger
	Pacing     Pacing
	// NewRunID defaults to random UUIDs.
	NewRunID func() string
}

// Pipeline implements the scrape, dedupe, enrich and deliver cycle.
type Pipeline struct {
	links      ports.CategoryLinks
	source     ports.ListingSource
	store      ports.DedupStore
	archive    ports.ListingArchive
	enricher   ports.Enricher
	policy     *formatter.Policy
	dispatcher *Dispatcher
	pacer      *clock.Pacer
	observer   observer.Observer
	logger     *slog.Logger
	pacing     Pacing
	newRunID   func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		links:      deps.Links,
		source:     deps.Source,
		store:      deps.Store,
		archive:    deps.Archive,
		enricher:   deps.Enricher,
		policy:     deps.Policy,
		dispatcher: deps.Dispatcher,
		pacer:      deps.Pacer,
		observer:   deps.Observer,
		logger:     deps.Logger,
		pacing:     deps.Pacing,
		newRunID:   deps.NewRunID,
	}
	if p.pacer == nil {
		p.pacer = clock.NewPacer(nil, nil)
	}
	if p.observer == nil {
		p.observer = observer.Nop{}
	}
	if p.newRunID == nil {
		p.newRunID = uuid.NewString
	}
	return p
}

// RunCycle walks every configured category once. Category failures are
// logged and skipped; only cancellation or a broken category list stops the cycle.
func (p *Pipeline) RunCycle(ctx context.Context, trigger time.Time) error {
	if p.links == nil || p.source == nil || p.store == nil {
		return nil
	}

	runID := p.newRunID()
	started := p.now()
	p.emit(ctx, observer.Event{Kind: observer.CycleStarted, RunID: runID, At: trigger})

	categories, err := p.links.Links(ctx)
	if err != nil {
		err = fmt.Errorf("load categories: %w", err)
		p.emit(ctx, observer.Event{Kind: observer.CycleFinished, RunID: runID, Err: err})
		return err
	}
	p.debug("cycle started", slog.String("run", runID), slog.Int("categories", len(categories)))

	delivered := 0
	for i, category := range categories {
		if err := ctx.Err(); err != nil {
			return err
		}

		sent, err := p.processCategory(ctx, runID, category)
		delivered += sent
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.warn("category failed", slog.String("run", runID), slog.String("category", category.Name), slog.String("error", err.Error()))
			p.emit(ctx, observer.Event{Kind: observer.CategoryFailed, RunID: runID, Category: category.Name, Err: err})

			if isForbidden(err) {
				continue
			}
			if err := p.pacer.Wait(ctx, p.pacing.CategoryBackoff); err != nil {
				return err
			}
			continue
		}

		if i < len(categories)-1 {
			if err := p.pacer.Wait(ctx, p.pacing.BetweenCategories); err != nil {
				return err
			}
		}
	}

	p.emit(ctx, observer.Event{
		Kind:     observer.CycleFinished,
		RunID:    runID,
		Count:    delivered,
		Duration: p.now().Sub(started),
	})
	return nil
}

// processCategory returns how many listings were delivered.
func (p *Pipeline) processCategory(ctx context.Context, runID string, category domain.Category) (int, error) {
	if err := p.pacer.Wait(ctx, p.pacing.PreFetch); err != nil {
		return 0, err
	}

	listings, err := p.source.FetchCategory(ctx, category)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", category.Name, err)
	}
	p.emit(ctx, observer.Event{Kind: observer.ListingDiscovered, RunID: runID, Category: category.Name, Count: len(listings)})
	if len(listings) == 0 {
		return 0, nil
	}

	if err := p.store.MergeDiscovered(ctx, listings); err != nil {
		return 0, fmt.Errorf("merge discovered %s: %w", category.Name, err)
	}
	if p.archive != nil {
		if err := p.archive.SaveListings(ctx, listings); err != nil {
			p.warn("archive listings failed", slog.String("category", category.Name), slog.String("error", err.Error()))
		}
	}

	pending, err := p.pending(ctx, listings)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i, listing := range pending {
		if i > 0 {
			if err := p.pacer.Wait(ctx, p.pacing.BetweenDeliveries); err != nil {
				return delivered, err
			}
		}
		ok, err := p.deliverOne(ctx, runID, listing)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	return delivered, nil
}

// pending drops listings already delivered and duplicates within one snapshot.
func (p *Pipeline) pending(ctx context.Context, listings []domain.Listing) ([]domain.Listing, error) {
	seen := make(map[string]struct{}, len(listings))
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}

		sent, err := p.store.IsSent(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("check sent %s: %w", l.ID, err)
		}
		if !sent {
			out = append(out, l)
		}
	}
	return out, nil
}

// deliverOne enriches, filters and dispatches a listing. Delivery errors are
// logged and swallowed so the rest of the category still goes out.
func (p *Pipeline) deliverOne(ctx context.Context, runID string, l domain.Listing) (bool, error) {
	var detail domain.EnrichedDetail
	if p.enricher != nil {
		detail = p.enricher.Enrich(ctx, l)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if detail.Degraded {
		p.emit(ctx, observer.Event{Kind: observer.EnrichmentDegraded, RunID: runID, Category: l.Category, ListingID: l.ID})
	}

	if p.policy.Defer(l, detail) {
		p.debug("listing deferred, seller unknown", slog.String("listing", l.ID), slog.String("category", l.Category))
		return false, nil
	}
	if p.policy.Suppress(l, detail) {
		if err := p.store.MarkSent(ctx, l.ID); err != nil {
			return false, fmt.Errorf("mark suppressed %s: %w", l.ID, err)
		}
		p.debug("listing suppressed", slog.String("listing", l.ID), slog.String("category", l.Category))
		p.emit(ctx, observer.Event{Kind: observer.ListingSuppressed, RunID: runID, Category: l.Category, ListingID: l.ID})
		return false, nil
	}

	if p.dispatcher == nil {
		return false, nil
	}
	if err := p.dispatcher.Deliver(ctx, runID, l, detail); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		if !errors.Is(err, ports.ErrNoChat) {
			p.warn("delivery failed", slog.String("listing", l.ID), slog.String("error", err.Error()))
		}
		return false, nil
	}
	return true, nil
}

func (p *Pipeline) now() time.Time {
	return p.pacer.Clock().Now()
}

func (p *Pipeline) emit(ctx context.Context, e observer.Event) {
	if e.At.IsZero() {
		e.At = p.now()
	}
	p.observer.Observe(ctx, e)
}

func (p *Pipeline) debug(msg string, attrs ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, attrs...)
	}
}

func (p *Pipeline) warn(msg string, attrs ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, attrs...)
	}
}

// isForbidden reports a 403 from the listing site; such categories skip the backoff.
func isForbidden(err error) bool {
	var status ports.HTTPStatus
	return errors.As(err, &status) && status.HTTPStatus() == http.StatusForbidden
}
