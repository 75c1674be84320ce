package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"OlxWatcher/internal/domain"
	"OlxWatcher/internal/ports"
)

// RedisStore keeps the sent set in a Redis SET and discovered listings in a HASH of JSON.
type RedisStore struct {
	client   redis.UniversalClient
	sentKey  string
	foundKey string
}

var _ ports.DedupStore = (*RedisStore)(nil)

// NewRedisStore namespaces its keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "olxwatch"
	}
	return &RedisStore{
		client:   client,
		sentKey:  prefix + ":sent",
		foundKey: prefix + ":found",
	}
}

// DialRedis connects and pings, like the other Redis-backed adapters.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) IsSent(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.sentKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("sismember: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) MarkSent(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.client.SAdd(ctx, s.sentKey, id).Err(); err != nil {
		return fmt.Errorf("sadd: %w", err)
	}
	return nil
}

func (s *RedisStore) MergeDiscovered(ctx context.Context, listings []domain.Listing) error {
	values := make([]interface{}, 0, len(listings)*2)
	for _, listing := range listings {
		if listing.ID == "" {
			continue
		}
		data, err := json.Marshal(listing)
		if err != nil {
			return fmt.Errorf("encode listing %s: %w", listing.ID, err)
		}
		values = append(values, listing.ID, data)
	}
	if len(values) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, s.foundKey, values...).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

// Discovered returns listings ordered by id; hash order is not stable.
// Entries that no longer decode are dropped from the hash and skipped.
func (s *RedisStore) Discovered(ctx context.Context) ([]domain.Listing, error) {
	raw, err := s.client.HGetAll(ctx, s.foundKey).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall: %w", err)
	}

	out := make([]domain.Listing, 0, len(raw))
	var broken []string
	for id, data := range raw {
		var listing domain.Listing
		if err := json.Unmarshal([]byte(data), &listing); err != nil || listing.ID == "" {
			broken = append(broken, id)
			continue
		}
		out = append(out, listing)
	}
	if len(broken) > 0 {
		if err := s.client.HDel(ctx, s.foundKey, broken...).Err(); err != nil {
			return nil, fmt.Errorf("hdel corrupted: %w", err)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
