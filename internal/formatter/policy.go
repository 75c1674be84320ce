package formatter

import "OlxWatcher/internal/domain"

// Policy decides which enriched listings are delivered.
type Policy struct {
	privateOnly map[string]struct{}
}

// NewPolicy marks categories where only private sellers are delivered.
func NewPolicy(privateOnly []string) *Policy {
	set := make(map[string]struct{}, len(privateOnly))
	for _, c := range privateOnly {
		set[c] = struct{}{}
	}
	return &Policy{privateOnly: set}
}

// Suppress reports whether the listing must be skipped (and still marked sent).
// A degraded detail says nothing about the seller, so it is never suppressed.
func (p *Policy) Suppress(l domain.Listing, d domain.EnrichedDetail) bool {
	return p.restricted(l.Category) && !d.Degraded && !d.IsPrivateSeller
}

// Defer reports whether the listing must wait for a later cycle: the seller
// check applies but the detail page could not be read.
func (p *Policy) Defer(l domain.Listing, d domain.EnrichedDetail) bool {
	return p.restricted(l.Category) && d.Degraded
}

func (p *Policy) restricted(category string) bool {
	if p == nil {
		return false
	}
	_, ok := p.privateOnly[category]
	return ok
}
