package enricher

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"OlxWatcher/internal/infrastructure/useragent"
)

// DocumentFetcher loads a detail page as a parsed document.
type DocumentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// StaticFetcher fetches server-rendered markup with a fresh colly collector per page.
type StaticFetcher struct {
	timeout time.Duration
	referer string
}

var _ DocumentFetcher = (*StaticFetcher)(nil)

// NewStaticFetcher sets the per-request timeout and the Referer sent with each page.
func NewStaticFetcher(timeout time.Duration, referer string) *StaticFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &StaticFetcher{timeout: timeout, referer: referer}
}

func (f *StaticFetcher) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	c := colly.NewCollector(
		colly.UserAgent(useragent.Random()),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(f.timeout)

	var (
		body   []byte
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		useragent.ApplyBrowserHeaders(*r.Headers, f.referer)
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("visit %s: empty response (status %d)", pageURL, status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}
