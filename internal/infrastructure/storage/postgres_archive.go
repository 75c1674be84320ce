package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
)

const listingsTable = "listings"

const createListingsTable = `CREATE TABLE IF NOT EXISTS listings (
    id            TEXT PRIMARY KEY,
    category      TEXT NOT NULL,
    title         TEXT NOT NULL,
    price         TEXT NOT NULL,
    url           TEXT NOT NULL,
    posted_at     TIMESTAMPTZ,
    discovered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresArchive mirrors discovered listings into Postgres.
type PostgresArchive struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.ListingArchive = (*PostgresArchive)(nil)

// NewPostgresArchive wires a sql.DB implementation.
func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     time.Now,
	}
}

// OpenPostgres opens and pings a lib/pq connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the listings table when it is missing.
func (r *PostgresArchive) Migrate(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, createListingsTable); err != nil {
		return fmt.Errorf("create listings table: %w", err)
	}
	return nil
}

// SaveListings upserts the batch in a single statement.
func (r *PostgresArchive) SaveListings(ctx context.Context, listings []domain.Listing) error {
	if r.db == nil || len(listings) == 0 {
		return nil
	}

	query, args, err := r.upsertQuery(listings)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if query == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert listings: %w", err)
	}
	return nil
}

func (r *PostgresArchive) upsertQuery(listings []domain.Listing) (string, []interface{}, error) {
	discoveredAt := r.now().UTC()

	insert := r.builder.
		Insert(listingsTable).
		Columns("id", "category", "title", "price", "url", "posted_at", "discovered_at")

	seen := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		if _, dup := seen[l.ID]; dup || l.ID == "" {
			continue
		}
		seen[l.ID] = struct{}{}

		var postedAt interface{}
		if !l.PostedAt.IsZero() {
			postedAt = l.PostedAt.UTC()
		}
		insert = insert.Values(l.ID, l.Category, l.Title, l.Price, l.URL, postedAt, discoveredAt)
	}

	if len(seen) == 0 {
		return "", nil, nil
	}

	return insert.Suffix(`ON CONFLICT (id) DO UPDATE
        SET category = EXCLUDED.category,
            title = EXCLUDED.title,
            price = EXCLUDED.price,
            url = EXCLUDED.url,
            posted_at = EXCLUDED.posted_at`).ToSql()
}
