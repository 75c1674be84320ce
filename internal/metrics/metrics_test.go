package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"OlxWatcher/internal/observer"
)

func TestCollectorCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	ctx := context.Background()

	c.Observe(ctx, observer.Event{Kind: observer.ListingDiscovered, Category: "astelec", Count: 3})
	c.Observe(ctx, observer.Event{Kind: observer.ListingSuppressed, Category: "astelec"})
	c.Observe(ctx, observer.Event{Kind: observer.DeliverySent})
	c.Observe(ctx, observer.Event{Kind: observer.DeliverySent})
	c.Observe(ctx, observer.Event{Kind: observer.DeliveryFailed})
	c.Observe(ctx, observer.Event{Kind: observer.CycleFinished, Duration: 90 * time.Second})

	if got := testutil.ToFloat64(c.discovered.WithLabelValues("astelec")); got != 3 {
		t.Errorf("discovered = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.deliveries.WithLabelValues("sent")); got != 2 {
		t.Errorf("sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.deliveries.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.cycles); got != 1 {
		t.Errorf("cycles = %v, want 1", got)
	}
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.Observe(context.Background(), observer.Event{Kind: observer.DeliverySent})

	server := httptest.NewServer(Router(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `olxwatch_deliveries_total{result="sent"} 1`) {
		t.Errorf("metrics output missing delivery counter:\n%s", body)
	}

	resp, err = http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}
