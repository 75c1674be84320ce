package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseKeepsDefaultsForAbsentKeys(t *testing.T) {
	t.Parallel()

	raw := []byte(`
scheduler:
  interval: 5m
  betweenDeliveries:
    min: 7s
    max: 9s
notifications:
  telegram:
    parseMode: html
policy:
  privateOnlyCategories: [astphones]
`)

	cfg, err := parse(defaultConfig(), raw)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	cfg.normalize()

	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("unexpected interval: %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.BetweenDeliveries != (Window{Min: 7 * time.Second, Max: 9 * time.Second}) {
		t.Fatalf("unexpected window: %+v", cfg.Scheduler.BetweenDeliveries)
	}
	if cfg.Scheduler.PreFetch != (Window{Min: time.Second, Max: 4 * time.Second}) {
		t.Fatalf("default prefetch window lost: %+v", cfg.Scheduler.PreFetch)
	}
	if cfg.Notifications.Telegram.ParseMode != ParseModeHTML {
		t.Fatalf("unexpected parse mode: %s", cfg.Notifications.Telegram.ParseMode)
	}
	if cfg.Notifications.Telegram.MaxPhotos != 5 {
		t.Fatalf("default max photos lost: %d", cfg.Notifications.Telegram.MaxPhotos)
	}
	if len(cfg.Policy.PrivateOnlyCategories) != 1 || cfg.Policy.PrivateOnlyCategories[0] != "astphones" {
		t.Fatalf("unexpected policy: %v", cfg.Policy.PrivateOnlyCategories)
	}
	if cfg.Site.BaseURL != "https://www.olx.kz" || cfg.Storage.DataDir != "data" {
		t.Fatalf("unexpected defaults: %+v %+v", cfg.Site, cfg.Storage)
	}
}

func TestParseRejectsBrokenYAML(t *testing.T) {
	t.Parallel()

	base := defaultConfig()
	cfg, err := parse(base, []byte("scheduler: [unterminated"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if cfg.Scheduler.Interval != base.Scheduler.Interval {
		t.Fatalf("base config not returned on error")
	}
}

func TestNormalizeRepairsInvalidValues(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	cfg.Notifications.Telegram.MaxPhotos = 12
	cfg.Storage.Backend = "s3"
	cfg.normalize()

	if cfg.Scheduler.Interval != 2*time.Minute {
		t.Fatalf("unexpected interval: %s", cfg.Scheduler.Interval)
	}
	if cfg.Notifications.Telegram.MaxPhotos != 5 {
		t.Fatalf("max photos not capped: %d", cfg.Notifications.Telegram.MaxPhotos)
	}
	if cfg.Notifications.Telegram.ParseMode != ParseModeMarkdownV2 {
		t.Fatalf("unexpected parse mode: %s", cfg.Notifications.Telegram.ParseMode)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Fatalf("unexpected backend: %s", cfg.Storage.Backend)
	}
}

func TestLoadAppliesFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("scheduler:\n  timezone: Europe/Berlin\nnotifications:\n  telegram:\n    botToken: from-file\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(legacyTokenEnv, "legacy")
	t.Setenv(telegramTokenEnv, "")
	t.Setenv(targetChatIDEnv, "-100200")
	t.Setenv(telegramChatIDEnv, "")
	t.Setenv(redisAddrEnv, "redis:6379")
	t.Setenv(logLevelEnv, "debug")

	cfg := Load()

	if cfg.Notifications.Telegram.BotToken != "legacy" {
		t.Fatalf("unexpected token: %s", cfg.Notifications.Telegram.BotToken)
	}
	if cfg.Notifications.Telegram.ChatID != "-100200" {
		t.Fatalf("unexpected chat id: %s", cfg.Notifications.Telegram.ChatID)
	}
	if cfg.Storage.Backend != BackendRedis || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("redis override not applied: %+v %+v", cfg.Storage, cfg.Redis)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level: %s", cfg.Logging.Level)
	}
	if cfg.Scheduler.Location().String() != "Europe/Berlin" {
		t.Fatalf("unexpected location: %s", cfg.Scheduler.Location())
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	t.Parallel()

	var s SchedulerConfig
	if s.Location().String() != "UTC" {
		t.Fatalf("unexpected location: %s", s.Location())
	}
}
