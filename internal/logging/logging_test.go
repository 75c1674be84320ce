package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{"error", slog.LevelError},
		{" WARN ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"info", slog.LevelInfo},
		{"", slog.LevelDebug},
		{"verbose", slog.LevelDebug},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewToFiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewTo(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown", "component", "pipeline")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked: %s", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "component=pipeline") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestNewToJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewTo(&buf, "info", "JSON").Info("cycle-finished", "count", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v (%s)", err, buf.String())
	}
	if record["msg"] != "cycle-finished" || record["count"] != float64(3) {
		t.Fatalf("unexpected record: %v", record)
	}
}
