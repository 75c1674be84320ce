package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/freshness"
	"OlxWatcher/internal/infrastructure/useragent"
	"OlxWatcher/internal/ports"
	"OlxWatcher/internal/scanner"
)

const (
	listingTimeout = 15 * time.Second
	maxRedirects   = 5
	searchReferer  = "https://www.google.com/"
)

// StatusError reports a non-200 listing page response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("listing page %s returned %d", e.URL, e.StatusCode)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

var _ ports.HTTPStatus = (*StatusError)(nil)

// OLXScanner fetches a category page and extracts fresh listing cards.
type OLXScanner struct {
	client *http.Client
	markup scanner.Markup
	dates  *freshness.Parser
	logger *slog.Logger
}

// NewOLXScanner wires an HTTP client; a nil client gets a 15s timeout and a redirect cap.
func NewOLXScanner(client *http.Client, markup scanner.Markup, dates *freshness.Parser, logger *slog.Logger) *OLXScanner {
	if client == nil {
		client = &http.Client{
			Timeout: listingTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		}
	}
	if markup == nil {
		markup = NewOLXMarkup("")
	}
	if dates == nil {
		dates = freshness.NewParser(0, time.Local)
	}
	return &OLXScanner{client: client, markup: markup, dates: dates, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *OLXScanner) Name() string {
	return "olx"
}

// Scan fetches the category URL and returns the listings posted within the freshness window.
func (s *OLXScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Listing, error) {
	if req.Category.URL == "" {
		return nil, fmt.Errorf("category %s has no url", req.Category.Name)
	}

	doc, err := s.fetchDocument(ctx, req.Category.URL)
	if err != nil {
		return nil, fmt.Errorf("category %s: %w", req.Category.Name, err)
	}

	listings, total := s.extractListings(doc, req.Category.Name)
	s.debug("category page parsed", "category", req.Category.Name, "cards", total, "fresh", len(listings))
	return listings, nil
}

func (s *OLXScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	useragent.ApplyBrowserHeaders(req.Header, searchReferer)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// extractListings returns fresh listings plus the number of cards seen.
func (s *OLXScanner) extractListings(doc *goquery.Document, category string) ([]domain.Listing, int) {
	var (
		collected []domain.Listing
		total     int
	)

	s.markup.Cards(doc).Each(func(_ int, card *goquery.Selection) {
		total++
		listing, ok := s.parseCard(card, category)
		if ok {
			collected = append(collected, listing)
		}
	})

	return collected, total
}

func (s *OLXScanner) parseCard(card *goquery.Selection, category string) (domain.Listing, bool) {
	fields := s.markup.Card(card)

	detailURL := s.markup.ResolveURL(fields.Href)
	if detailURL == "" {
		return domain.Listing{}, false
	}

	posted := s.dates.Parse(fields.PostedAt)
	if !s.dates.Fresh(posted) {
		return domain.Listing{}, false
	}

	title := fields.Title
	if title == "" {
		title = s.markup.NoTitle()
	}
	price := fields.Price
	if price == "" {
		price = s.markup.NoPrice()
	}

	return domain.Listing{
		ID:       s.markup.ListingID(detailURL),
		Category: category,
		Title:    title,
		Price:    price,
		PostedAt: posted.At,
		URL:      detailURL,
		Location: posted.Location,
	}, true
}

func (s *OLXScanner) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
