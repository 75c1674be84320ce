package scanner

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"OlxWatcher/internal/domain"
)

// Request carries all parameters required to scan one category page.
type Request struct {
	Category domain.Category
	Options  map[string]string
}

// Scanner captures a single site strategy (OLX, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Listing, error)
}

// Card holds the raw strings pulled from one listing card.
type Card struct {
	Title    string
	Price    string
	PostedAt string
	Href     string
}

// Markup isolates the selectors of category listing pages, so a layout change
// only touches the implementation of this interface.
type Markup interface {
	Cards(doc *goquery.Document) *goquery.Selection
	Card(card *goquery.Selection) Card
	// ResolveURL turns a card href into an absolute detail URL ("" when unusable).
	ResolveURL(href string) string
	// ListingID derives a stable id from the detail URL; never empty for a non-empty URL.
	ListingID(detailURL string) string
	// Placeholders for missing card fields.
	NoTitle() string
	NoPrice() string
}

// DetailMarkup isolates the selectors of listing detail pages.
type DetailMarkup interface {
	IsBlocked(doc *goquery.Document) bool
	Extract(doc *goquery.Document) domain.EnrichedDetail
	// DescriptionHTML returns the raw description block markup, if the page has one.
	DescriptionHTML(doc *goquery.Document) (string, bool)
	ViewCount(doc *goquery.Document) string
	// ReadySelector is the element a renderer waits for before snapshotting the DOM.
	ReadySelector() string
	ScriptText(doc *goquery.Document) []string
	PhoneEndpoint(adID string) string
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
