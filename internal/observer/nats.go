package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

type natsPayload struct {
	Kind      Kind      `json:"kind"`
	At        time.Time `json:"at"`
	RunID     string    `json:"runId,omitempty"`
	Category  string    `json:"category,omitempty"`
	ListingID string    `json:"listingId,omitempty"`
	Count     int       `json:"count,omitempty"`
	Duration  float64   `json:"durationSeconds,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NATSPublisher publishes every event on "<subject>.<kind>".
type NATSPublisher struct {
	conn    *nats.Conn
	publish func(subject string, data []byte) error
	subject string
	logger  *slog.Logger
}

// ConnectNATS dials url and wraps the connection in a publisher.
func ConnectNATS(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("olxwatch"),
		nats.Timeout(5 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if logger != nil && err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if logger != nil {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newNATSPublisher(nc.Publish, subject, logger)
	p.conn = nc
	return p, nil
}

func newNATSPublisher(publish func(string, []byte) error, subject string, logger *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = "olxwatch.events"
	}
	return &NATSPublisher{publish: publish, subject: subject, logger: logger}
}

func (p *NATSPublisher) Observe(_ context.Context, e Event) {
	payload := natsPayload{
		Kind:      e.Kind,
		At:        e.At,
		RunID:     e.RunID,
		Category:  e.Category,
		ListingID: e.ListingID,
		Count:     e.Count,
		Duration:  e.Duration.Seconds(),
	}
	if e.Err != nil {
		payload.Error = e.Err.Error()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.warn("encode event", err)
		return
	}
	if err := p.publish(p.subject+"."+string(e.Kind), data); err != nil {
		p.warn("publish event", err)
	}
}

// Close drains the connection, flushing buffered events.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

func (p *NATSPublisher) warn(msg string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, "subject", p.subject, "error", err)
	}
}
