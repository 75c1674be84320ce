package ports

import (
	"context"
	"errors"
	"time"

	"OlxWatcher/internal/domain"
)

// ListingSource pulls fresh listings for one category page.
type ListingSource interface {
	FetchCategory(ctx context.Context, category domain.Category) ([]domain.Listing, error)
}

// CategoryLinks exposes the operator-maintained category -> URL mapping.
type CategoryLinks interface {
	Links(ctx context.Context) ([]domain.Category, error)
}

// DedupStore keeps discovered listings and the ids already delivered.
type DedupStore interface {
	IsSent(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string) error
	MergeDiscovered(ctx context.Context, listings []domain.Listing) error
	Discovered(ctx context.Context) ([]domain.Listing, error)
}

// ListingArchive mirrors discovered listings into long-term storage.
type ListingArchive interface {
	SaveListings(ctx context.Context, listings []domain.Listing) error
}

// Enricher turns a listing URL into detail attributes. It never fails;
// degraded results are flagged on the returned record.
type Enricher interface {
	Enrich(ctx context.Context, listing domain.Listing) domain.EnrichedDetail
}

// Photo is a downloaded image ready to be attached to a message.
type Photo struct {
	Name string
	Data []byte
}

// PhotoDownloader fetches listing images for attachment.
type PhotoDownloader interface {
	Download(ctx context.Context, urls []string, limit int) []Photo
}

// Messenger pushes formatted messages to the configured channel.
type Messenger interface {
	SendText(ctx context.Context, text string) error
	SendPhotos(ctx context.Context, caption string, photos []Photo) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Run(ctx context.Context, job func(ctx context.Context, trigger time.Time)) error
}

// ErrNoChat is returned by messengers and the dispatcher when no target chat is configured.
var ErrNoChat = errors.New("delivery chat is not configured")

// RetryAfter is implemented by errors that ask the caller to back off before retrying.
type RetryAfter interface {
	error
	// RetryDelay is zero when the remote side gave no hint.
	RetryDelay() time.Duration
}

// HTTPStatus is implemented by errors that carry an upstream HTTP status code.
type HTTPStatus interface {
	error
	HTTPStatus() int
}
