package parser

import (
	"context"
	"fmt"
	"log/slog"

	"OlxWatcher/internal/config"
	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
	"OlxWatcher/internal/scanner"
)

// StrategySource implements ListingSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	site     config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ListingSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured site.
func NewStrategySource(reg *scanner.Registry, site config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		site:     site,
		logger:   log,
	}
}

// FetchCategory runs the site scanner against one category page.
func (s *StrategySource) FetchCategory(ctx context.Context, category domain.Category) ([]domain.Listing, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.site.Scanner)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", s.site.Name, err)
	}

	s.debug("scan category", "site", s.site.Name, "scanner", s.site.Scanner, "category", category.Name)

	results, err := strategy.Scan(ctx, scanner.Request{
		Category: category,
		Options:  s.site.Options,
	})
	if err != nil {
		return nil, err
	}

	for i := range results {
		if results[i].Category == "" {
			results[i].Category = category.Name
		}
	}
	s.debug("category produced listings", "category", category.Name, "count", len(results))
	return results, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
