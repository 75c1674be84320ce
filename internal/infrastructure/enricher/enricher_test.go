package enricher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/infrastructure/parser"
)

const detailPage = `
<html><head><title>Ноутбук</title></head><body>
  <div data-testid="ad-photo"><img src="https://cdn.example/a/image;s=640x480"></div>
  <div data-testid="ad-parameters-container"><p><span>Частное лицо</span></p></div>
  <div data-cy="ad_description"><div>Отличное&nbsp;состояние<br>Торг</div></div>
  <div data-cy="ad-footer-bar-section"><span>ID: 4242</span></div>
</body></html>`

type fetcherFunc func(ctx context.Context, pageURL string) (*goquery.Document, error)

func (f fetcherFunc) Fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	return f(ctx, pageURL)
}

type fakeRenderer struct {
	calls  int
	markup string
	err    error
}

func (r *fakeRenderer) Render(context.Context, string, string) (string, error) {
	r.calls++
	return r.markup, r.err
}

func newTestEnricher(static DocumentFetcher, renderer Renderer, opts Options) (*Enricher, *clock.Fake) {
	fake := clock.NewFake(time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC))
	pacer := clock.NewPacer(fake, func() float64 { return 0 })
	return New(static, renderer, nil, parser.NewOLXMarkup(""), pacer, opts, nil), fake
}

func TestEnrichPrimarySuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		calls++
		return goquery.NewDocumentFromReader(strings.NewReader(detailPage))
	})

	e, _ := newTestEnricher(static, nil, Options{Attempts: 2, Backoff: 3 * time.Second})
	detail := e.Enrich(context.Background(), domain.Listing{URL: "https://www.olx.kz/d/x-ID1.html"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, domain.SourcePrimary, detail.Source)
	assert.False(t, detail.Degraded)
	assert.True(t, detail.IsPrivateSeller)
	assert.Equal(t, "Отличное состояние\nТорг", detail.Description)
	assert.Equal(t, []string{"https://cdn.example/a/image;s=1920x1080"}, detail.PhotoURLs)
	assert.Equal(t, "4242", detail.AdID)
}

func TestEnrichPrimaryTwiceThenFallbackOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		calls++
		return nil, errors.New("connection reset")
	})
	renderer := &fakeRenderer{markup: detailPage}

	e, fake := newTestEnricher(static, renderer, Options{
		Attempts: 2,
		Backoff:  3 * time.Second,
		PreFetch: clock.Window{Min: 2500 * time.Millisecond, Max: 5 * time.Second},
	})
	detail := e.Enrich(context.Background(), domain.Listing{URL: "https://www.olx.kz/d/x-ID1.html"})

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, renderer.calls)
	assert.Equal(t, domain.SourceFallback, detail.Source)
	assert.True(t, detail.IsPrivateSeller)
	assert.False(t, detail.Degraded)
	assert.Equal(t, []time.Duration{2500 * time.Millisecond, 3 * time.Second}, fake.Sleeps())
}

func TestEnrichTotalFailureDegrades(t *testing.T) {
	t.Parallel()

	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		return nil, errors.New("timeout")
	})
	renderer := &fakeRenderer{err: errors.New("chrome crashed")}

	e, _ := newTestEnricher(static, renderer, Options{Attempts: 2, Backoff: time.Second})
	detail := e.Enrich(context.Background(), domain.Listing{URL: "https://www.olx.kz/d/x-ID1.html"})

	assert.True(t, detail.Degraded)
	assert.Equal(t, domain.SourceNone, detail.Source)
	assert.Equal(t, FailedDescription, detail.Description)
	assert.Empty(t, detail.PhotoURLs)
	assert.False(t, detail.IsPrivateSeller)
	assert.Equal(t, 1, renderer.calls)
}

func TestEnrichBlockedPageCountsAsFailure(t *testing.T) {
	t.Parallel()

	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		return goquery.NewDocumentFromReader(strings.NewReader(`<html><head><title>Attention Required!</title></head></html>`))
	})

	e, _ := newTestEnricher(static, nil, Options{Attempts: 2})
	detail := e.Enrich(context.Background(), domain.Listing{URL: "https://www.olx.kz/d/x-ID1.html"})

	assert.True(t, detail.Degraded)
}

func TestEnrichFallbackWithoutDescriptionBlock(t *testing.T) {
	t.Parallel()

	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		return nil, errors.New("status 503")
	})
	renderer := &fakeRenderer{markup: `<html><head><title>Объявление</title></head><body>
		<article><p>Продаю ноутбук в хорошем состоянии, батарея держит четыре часа, зарядка в комплекте.</p>
		<p>Самовывоз из центра города, возможна доставка по договоренности.</p></article>
	</body></html>`}

	e, _ := newTestEnricher(static, renderer, Options{Attempts: 1})
	detail := e.Enrich(context.Background(), domain.Listing{URL: "https://www.olx.kz/d/x-ID1.html"})

	assert.Equal(t, domain.SourceFallback, detail.Source)
	assert.NotEqual(t, FailedDescription, detail.Description)
	assert.NotEmpty(t, detail.Description)
}

func TestEnrichPhoneLookup(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/offers/4242/limited-phones/", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"phones":["+7 701 000 11 22"]}}`))
	}))
	defer server.Close()

	static := fetcherFunc(func(context.Context, string) (*goquery.Document, error) {
		return goquery.NewDocumentFromReader(strings.NewReader(detailPage))
	})
	fake := clock.NewFake(time.Now())
	e := New(static, nil, NewPhoneLookup(server.Client(), ""), parser.NewOLXMarkup(server.URL),
		clock.NewPacer(fake, func() float64 { return 0 }), Options{Attempts: 1, Phone: true}, nil)

	detail := e.Enrich(context.Background(), domain.Listing{URL: server.URL + "/d/x-ID1.html"})
	assert.Equal(t, "+7 701 000 11 22", detail.Phone)
}

func TestPhoneLookupFallsBackToScripts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	lookup := NewPhoneLookup(server.Client(), "")
	phone := lookup.Lookup(context.Background(), server.URL+"/api/v1/offers/1/limited-phones/", []string{
		`window.__INIT__ = {"user":{"id":1}}`,
		`var contact = "8 (701) 555-12-34";`,
	})
	assert.Equal(t, "8 (701) 555-12-34", phone)
	assert.Empty(t, FindPhone([]string{"no digits here"}))
}

func TestCleaner(t *testing.T) {
	t.Parallel()

	c := NewCleaner(3000)
	got := c.Clean(`<p>Отличное&nbsp;<b>состояние</b></p><p>Торг   уместен</p>Звоните<br/><br><br>сейчас <script>alert(1)</script>`)
	assert.Equal(t, "Отличное состояние\nТорг уместен\nЗвоните\n\nсейчас", got)

	long := strings.Repeat("я", 3005)
	assert.Len(t, []rune(c.Clean(long)), 3000)
}

func TestStaticFetcher(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(detailPage))
	}))
	defer server.Close()

	f := NewStaticFetcher(5*time.Second, "https://www.olx.kz/")
	doc, err := f.Fetch(context.Background(), server.URL+"/d/x-ID1.html")
	require.NoError(t, err)
	assert.Equal(t, "Ноутбук", strings.TrimSpace(doc.Find("title").Text()))

	_, err = f.Fetch(context.Background(), server.URL+"/missing")
	assert.Error(t, err)
}
