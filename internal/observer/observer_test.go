package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a, b := &Recorder{}, &Recorder{}
	m := Multi{a, nil, Nop{}, b}
	m.Observe(context.Background(), Event{Kind: CycleStarted})
	m.Observe(context.Background(), Event{Kind: DeliverySent, ListingID: "ID1"})

	assert.Equal(t, []Kind{CycleStarted, DeliverySent}, a.Kinds())
	assert.Equal(t, 1, b.Count(DeliverySent))
}

func TestSlogSinkLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := NewSlogSink(logger)

	sink.Observe(context.Background(), Event{Kind: ListingDiscovered, ListingID: "ID1"})
	sink.Observe(context.Background(), Event{Kind: DeliveryFailed, ListingID: "ID2", Err: errors.New("boom")})

	out := buf.String()
	assert.NotContains(t, out, "ID1")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "listing_id=ID2")
	assert.Contains(t, out, "error=boom")
}

func TestNATSPublisherSubjects(t *testing.T) {
	t.Parallel()

	var subjects []string
	var last []byte
	p := newNATSPublisher(func(subject string, data []byte) error {
		subjects = append(subjects, subject)
		last = data
		return nil
	}, "olxwatch.events", nil)

	at := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	p.Observe(context.Background(), Event{Kind: CategoryFailed, At: at, Category: "astelec", Err: errors.New("403")})

	assert.Equal(t, []string{"olxwatch.events.category-failed"}, subjects)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(last, &payload))
	assert.Equal(t, "astelec", payload["category"])
	assert.Equal(t, "403", payload["error"])
	assert.True(t, strings.HasPrefix(payload["at"].(string), "2024-03-05T12:00:00"))
	assert.NoError(t, p.Close())
}
