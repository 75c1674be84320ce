// Package enricher loads listing detail pages and turns them into EnrichedDetail records.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
	"OlxWatcher/internal/scanner"
)

const (
	// NoDescription is used when the page loaded but carried no description block.
	NoDescription = "Описание отсутствует"
	// FailedDescription is used when no strategy could load the page.
	FailedDescription = "Не удалось загрузить описание"
)

var errBlocked = errors.New("detail page is a block or captcha page")

// Options tune retries and optional lookups.
type Options struct {
	Attempts  int
	Backoff   time.Duration
	PreFetch  clock.Window
	ViewCount bool
	Phone     bool
	// DescriptionLimit caps the cleaned description in runes.
	DescriptionLimit int
}

// Enricher runs the static path with retries, then the rendering fallback once.
type Enricher struct {
	static   DocumentFetcher
	renderer Renderer
	phones   *PhoneLookup
	markup   scanner.DetailMarkup
	cleaner  *Cleaner
	pacer    *clock.Pacer
	opts     Options
	logger   *slog.Logger
}

var _ ports.Enricher = (*Enricher)(nil)

// New wires the strategies. renderer and phones may be nil to disable them.
func New(static DocumentFetcher, renderer Renderer, phones *PhoneLookup, markup scanner.DetailMarkup, pacer *clock.Pacer, opts Options, logger *slog.Logger) *Enricher {
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	if opts.DescriptionLimit <= 0 {
		opts.DescriptionLimit = 3000
	}
	if pacer == nil {
		pacer = clock.NewPacer(nil, nil)
	}
	return &Enricher{
		static:   static,
		renderer: renderer,
		phones:   phones,
		markup:   markup,
		cleaner:  NewCleaner(opts.DescriptionLimit),
		pacer:    pacer,
		opts:     opts,
		logger:   logger,
	}
}

// Enrich never fails: when every strategy is exhausted it returns a degraded record.
func (e *Enricher) Enrich(ctx context.Context, listing domain.Listing) domain.EnrichedDetail {
	if err := e.pacer.Wait(ctx, e.opts.PreFetch); err != nil {
		return degraded()
	}

	for attempt := 1; attempt <= e.opts.Attempts; attempt++ {
		detail, doc, err := e.primary(ctx, listing.URL)
		if err == nil {
			detail.Source = domain.SourcePrimary
			if e.opts.ViewCount && e.renderer != nil {
				detail.ViewCount = e.renderedViewCount(ctx, listing.URL)
			}
			e.lookupPhone(ctx, &detail, doc)
			return detail
		}

		e.warn("primary detail fetch failed", "url", listing.URL, "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return degraded()
		}
		if attempt < e.opts.Attempts {
			if err := e.pacer.Sleep(ctx, time.Duration(attempt)*e.opts.Backoff); err != nil {
				return degraded()
			}
		}
	}

	if e.renderer != nil {
		detail, doc, err := e.fallback(ctx, listing.URL)
		if err == nil {
			detail.Source = domain.SourceFallback
			if e.opts.ViewCount {
				detail.ViewCount = e.markup.ViewCount(doc)
			}
			e.lookupPhone(ctx, &detail, doc)
			return detail
		}
		e.warn("fallback detail render failed", "url", listing.URL, "error", err)
	}

	return degraded()
}

func (e *Enricher) primary(ctx context.Context, pageURL string) (domain.EnrichedDetail, *goquery.Document, error) {
	if e.static == nil {
		return domain.EnrichedDetail{}, nil, errors.New("static fetcher is not configured")
	}
	doc, err := e.static.Fetch(ctx, pageURL)
	if err != nil {
		return domain.EnrichedDetail{}, nil, err
	}
	detail, err := e.extract(doc, "", pageURL)
	return detail, doc, err
}

func (e *Enricher) fallback(ctx context.Context, pageURL string) (domain.EnrichedDetail, *goquery.Document, error) {
	rendered, err := e.renderer.Render(ctx, pageURL, e.markup.ReadySelector())
	if err != nil {
		return domain.EnrichedDetail{}, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return domain.EnrichedDetail{}, nil, fmt.Errorf("parse rendered document: %w", err)
	}
	detail, err := e.extract(doc, rendered, pageURL)
	return detail, doc, err
}

// extract applies the detail markup; raw, when set, feeds the readability fallback.
func (e *Enricher) extract(doc *goquery.Document, raw, pageURL string) (domain.EnrichedDetail, error) {
	if e.markup.IsBlocked(doc) {
		return domain.EnrichedDetail{}, errBlocked
	}

	detail := e.markup.Extract(doc)
	if fragment, ok := e.markup.DescriptionHTML(doc); ok {
		detail.Description = e.cleaner.Clean(fragment)
	} else if raw != "" {
		detail.Description = e.readable(raw, pageURL)
	}
	if detail.Description == "" {
		detail.Description = NoDescription
	}
	return detail, nil
}

func (e *Enricher) readable(raw, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(raw), parsed)
	if err != nil {
		e.debug("readability extraction failed", "url", pageURL, "error", err)
		return ""
	}
	return e.cleaner.Text(article.TextContent)
}

func (e *Enricher) renderedViewCount(ctx context.Context, pageURL string) string {
	rendered, err := e.renderer.Render(ctx, pageURL, e.markup.ReadySelector())
	if err != nil {
		e.debug("view count render failed", "url", pageURL, "error", err)
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered))
	if err != nil {
		return ""
	}
	return e.markup.ViewCount(doc)
}

func (e *Enricher) lookupPhone(ctx context.Context, detail *domain.EnrichedDetail, doc *goquery.Document) {
	if !e.opts.Phone || e.phones == nil || doc == nil {
		return
	}
	var endpoint string
	if detail.AdID != "" {
		endpoint = e.markup.PhoneEndpoint(detail.AdID)
	}
	detail.Phone = e.phones.Lookup(ctx, endpoint, e.markup.ScriptText(doc))
}

func degraded() domain.EnrichedDetail {
	return domain.EnrichedDetail{
		Description: FailedDescription,
		Source:      domain.SourceNone,
		Degraded:    true,
	}
}

func (e *Enricher) warn(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Enricher) debug(msg string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
