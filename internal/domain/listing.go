package domain

import "time"

// Listing is a classified ad discovered on a category page.
type Listing struct {
	ID       string    `json:"id"`
	Category string    `json:"category"`
	Title    string    `json:"title"`
	Price    string    `json:"price"`
	PostedAt time.Time `json:"postedAt"`
	URL      string    `json:"url"`
	Location string    `json:"location,omitempty"`
}

// DetailSource tells which enrichment strategy produced a detail record.
type DetailSource string

const (
	SourcePrimary  DetailSource = "primary"
	SourceFallback DetailSource = "fallback"
	SourceNone     DetailSource = "none"
)

// EnrichedDetail carries detail-page attributes for a single delivery attempt.
// Optional attributes are empty strings when the page did not expose them.
type EnrichedDetail struct {
	IsPrivateSeller bool
	Description     string
	PhotoURLs       []string
	Phone           string
	ViewCount       string
	City            string
	SellerName      string
	SellerSince     string
	AdID            string

	Source   DetailSource
	Degraded bool
}

// Category is a watched category key and the page it is scraped from.
type Category struct {
	Name string
	URL  string
}
