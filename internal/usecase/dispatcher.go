package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/formatter"
	"OlxWatcher/internal/observer"
	"OlxWatcher/internal/ports"
)

const defaultRetryAfter = 30 * time.Second

// DispatcherDeps wires the delivery side of the pipeline.
type DispatcherDeps struct {
	Messenger ports.Messenger
	Photos    ports.PhotoDownloader
	Store     ports.DedupStore
	Formatter *formatter.Formatter
	// Limiter throttles every outgoing send; nil disables throttling.
	Limiter  *rate.Limiter
	Pacer    *clock.Pacer
	Observer observer.Observer
	Logger   *slog.Logger

	ChatConfigured    bool
	MaxPhotos         int
	DefaultRetryAfter time.Duration
}

// Dispatcher sends one listing to the channel and records it as delivered.
type Dispatcher struct {
	messenger  ports.Messenger
	photos     ports.PhotoDownloader
	store      ports.DedupStore
	formatter  *formatter.Formatter
	limiter    *rate.Limiter
	pacer      *clock.Pacer
	observer   observer.Observer
	logger     *slog.Logger
	hasChat    bool
	maxPhotos  int
	retryAfter time.Duration
}

// NewDispatcher constructs the delivery component.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		messenger:  deps.Messenger,
		photos:     deps.Photos,
		store:      deps.Store,
		formatter:  deps.Formatter,
		limiter:    deps.Limiter,
		pacer:      deps.Pacer,
		observer:   deps.Observer,
		logger:     deps.Logger,
		hasChat:    deps.ChatConfigured,
		maxPhotos:  deps.MaxPhotos,
		retryAfter: deps.DefaultRetryAfter,
	}
	if d.formatter == nil {
		d.formatter = formatter.New(string(formatter.MarkdownV2))
	}
	if d.pacer == nil {
		d.pacer = clock.NewPacer(nil, nil)
	}
	if d.observer == nil {
		d.observer = observer.Nop{}
	}
	if d.retryAfter <= 0 {
		d.retryAfter = defaultRetryAfter
	}
	return d
}

// Deliver sends the listing with photos when possible, falling back to text.
// A rate-limited send is retried once, after the advised delay, with a simplified text.
// The listing is marked sent only after a successful send.
func (d *Dispatcher) Deliver(ctx context.Context, runID string, l domain.Listing, detail domain.EnrichedDetail) error {
	event := observer.Event{RunID: runID, Category: l.Category, ListingID: l.ID}

	if !d.hasChat || d.messenger == nil {
		d.warn("delivery skipped: no chat configured", slog.String("listing", l.ID))
		d.emit(ctx, event, observer.DeliveryFailed, ports.ErrNoChat)
		return ports.ErrNoChat
	}

	err := d.sendFull(ctx, l, detail)

	var limited ports.RetryAfter
	if errors.As(err, &limited) {
		wait := limited.RetryDelay()
		if wait <= 0 {
			wait = d.retryAfter
		}
		d.warn("rate limited, retrying with simplified message",
			slog.String("listing", l.ID), slog.Duration("retry_after", wait))
		d.emit(ctx, event, observer.DeliveryRetried, err)

		if sleepErr := d.pacer.Sleep(ctx, wait); sleepErr != nil {
			return sleepErr
		}
		err = d.send(ctx, func(ctx context.Context) error {
			return d.messenger.SendText(ctx, d.formatter.Simplified(l))
		})
		if err != nil {
			err = fmt.Errorf("retry listing %s: %w", l.ID, err)
		}
	}

	if err != nil {
		d.emit(ctx, event, observer.DeliveryFailed, err)
		return err
	}

	if d.store != nil {
		if err := d.store.MarkSent(ctx, l.ID); err != nil {
			return fmt.Errorf("mark sent %s: %w", l.ID, err)
		}
	}
	d.emit(ctx, event, observer.DeliverySent, nil)
	return nil
}

// sendFull tries the photo album first and the full text message after it.
// A rate limit on the album is returned as is so the caller can back off.
func (d *Dispatcher) sendFull(ctx context.Context, l domain.Listing, detail domain.EnrichedDetail) error {
	var photos []ports.Photo
	if d.photos != nil && d.maxPhotos > 0 && len(detail.PhotoURLs) > 0 {
		photos = d.photos.Download(ctx, detail.PhotoURLs, d.maxPhotos)
	}

	if len(photos) > 0 {
		caption := d.formatter.Caption(l, detail, len(detail.PhotoURLs))
		err := d.send(ctx, func(ctx context.Context) error {
			return d.messenger.SendPhotos(ctx, caption, photos)
		})
		if err == nil {
			return nil
		}
		var limited ports.RetryAfter
		if errors.As(err, &limited) || errors.Is(err, ports.ErrNoChat) || ctx.Err() != nil {
			return err
		}
		d.warn("photo delivery failed, sending text", slog.String("listing", l.ID), slog.String("error", err.Error()))
	}

	text := d.formatter.Text(l, detail, len(detail.PhotoURLs))
	return d.send(ctx, func(ctx context.Context) error {
		return d.messenger.SendText(ctx, text)
	})
}

func (d *Dispatcher) send(ctx context.Context, call func(context.Context) error) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait send slot: %w", err)
		}
	}
	return call(ctx)
}

func (d *Dispatcher) emit(ctx context.Context, e observer.Event, kind observer.Kind, err error) {
	e.Kind = kind
	e.At = d.pacer.Clock().Now()
	e.Err = err
	d.observer.Observe(ctx, e)
}

func (d *Dispatcher) warn(msg string, attrs ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, attrs...)
	}
}
