package config

import (
	"log"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Almaty"
	fallbackZone    = "UTC"

	configPathEnv     = "OLXWATCH_CONFIG"
	dataDirEnv        = "OLXWATCH_DATA_DIR"
	logLevelEnv       = "LOG_LEVEL"
	logFormatEnv      = "LOG_FORMAT"
	databaseDSNEnv    = "DATABASE_DSN"
	redisAddrEnv      = "REDIS_ADDR"
	natsURLEnv        = "NATS_URL"
	metricsAddrEnv    = "METRICS_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	legacyTokenEnv    = "API_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	targetChatIDEnv   = "TARGET_CHAT_ID"
	s3BucketEnv       = "EXPORT_S3_BUCKET"
)

// Parse modes supported by the formatter.
const (
	ParseModeMarkdownV2 = "MarkdownV2"
	ParseModeHTML       = "HTML"
)

// Storage backends for the dedup state.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Site          SiteConfig         `yaml:"site"`
	Enrich        EnrichConfig       `yaml:"enrich"`
	Notifications NotificationConfig `yaml:"notifications"`
	Policy        PolicyConfig       `yaml:"policy"`
	Storage       StorageConfig      `yaml:"storage"`
	Database      DatabaseConfig     `yaml:"database"`
	Redis         RedisConfig        `yaml:"redis"`
	NATS          NATSConfig         `yaml:"nats"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Export        ExportConfig       `yaml:"export"`
}

// LoggingConfig selects the slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Window is a randomized delay range.
type Window struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// SchedulerConfig defines how often the scrape cycle runs and how it paces itself.
type SchedulerConfig struct {
	Interval          time.Duration  `yaml:"interval"`
	Timezone          string         `yaml:"timezone"`
	PreFetch          Window         `yaml:"preFetch"`
	BetweenDeliveries Window         `yaml:"betweenDeliveries"`
	BetweenCategories Window         `yaml:"betweenCategories"`
	CategoryBackoff   Window         `yaml:"categoryBackoff"`
	location          *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(fallbackZone)
	return loc
}

// SiteConfig describes the scraped marketplace.
type SiteConfig struct {
	Name       string            `yaml:"name"`
	Scanner    string            `yaml:"scanner"`
	BaseURL    string            `yaml:"baseUrl"`
	Domain     string            `yaml:"domain"`
	TimeOffset time.Duration     `yaml:"timeOffset"`
	Options    map[string]string `yaml:"options"`
}

// EnrichConfig tunes the detail-page strategies.
type EnrichConfig struct {
	Attempts         int           `yaml:"attempts"`
	Backoff          time.Duration `yaml:"backoff"`
	Timeout          time.Duration `yaml:"timeout"`
	PreFetch         Window        `yaml:"preFetch"`
	Render           bool          `yaml:"render"`
	RenderTimeout    time.Duration `yaml:"renderTimeout"`
	ChromePath       string        `yaml:"chromePath"`
	ViewCount        bool          `yaml:"viewCount"`
	Phone            bool          `yaml:"phone"`
	DescriptionLimit int           `yaml:"descriptionLimit"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken          string        `yaml:"botToken"`
	ChatID            string        `yaml:"chatId"`
	APIBaseURL        string        `yaml:"apiBaseUrl"`
	ParseMode         string        `yaml:"parseMode"`
	MaxPhotos         int           `yaml:"maxPhotos"`
	MaxPhotoBytes     int64         `yaml:"maxPhotoBytes"`
	MinInterval       time.Duration `yaml:"minInterval"`
	Timeout           time.Duration `yaml:"timeout"`
	DefaultRetryAfter time.Duration `yaml:"defaultRetryAfter"`
}

// PolicyConfig holds delivery business rules.
type PolicyConfig struct {
	// PrivateOnlyCategories suppress listings from business sellers.
	PrivateOnlyCategories []string `yaml:"privateOnlyCategories"`
}

// StorageConfig selects where dedup state lives.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"dataDir"`
}

// DatabaseConfig describes the optional Postgres listing archive.
type DatabaseConfig struct {
	DSN     string `yaml:"dsn"`
	Migrate bool   `yaml:"migrate"`
}

// RedisConfig describes the optional Redis dedup backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// NATSConfig describes the optional event publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig enables uploading export archives to S3.
type ExportConfig struct {
	S3Bucket string `yaml:"s3Bucket"`
	S3Prefix string `yaml:"s3Prefix"`
	S3Region string `yaml:"s3Region"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if merged, err := parse(cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = merged
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	cfg.bindTimezone()

	return cfg
}

// parse decodes raw YAML on top of base; keys absent from the file keep base values.
func parse(base Config, raw []byte) (Config, error) {
	out := base
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return base, err
	}
	return out, nil
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Logging.Level, logLevelEnv)
	setString(&c.Logging.Format, logFormatEnv)
	setString(&c.Storage.DataDir, dataDirEnv)
	setString(&c.Database.DSN, databaseDSNEnv)
	setString(&c.NATS.URL, natsURLEnv)
	setString(&c.Metrics.Addr, metricsAddrEnv)
	setString(&c.Export.S3Bucket, s3BucketEnv)

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
		c.Storage.Backend = BackendRedis
	}

	setString(&c.Notifications.Telegram.BotToken, legacyTokenEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, targetChatIDEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)
}

// normalize repairs values a hand-written file may leave empty or invalid.
func (c *Config) normalize() {
	def := defaultConfig()

	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = def.Scheduler.Interval
	}
	if c.Site.Scanner == "" {
		c.Site.Scanner = def.Site.Scanner
	}
	if c.Site.BaseURL == "" {
		c.Site.BaseURL = def.Site.BaseURL
	}
	if c.Site.Domain == "" {
		c.Site.Domain = def.Site.Domain
	}
	if c.Enrich.Attempts <= 0 {
		c.Enrich.Attempts = def.Enrich.Attempts
	}
	if c.Enrich.DescriptionLimit <= 0 {
		c.Enrich.DescriptionLimit = def.Enrich.DescriptionLimit
	}

	tg := &c.Notifications.Telegram
	switch strings.ToLower(tg.ParseMode) {
	case "html":
		tg.ParseMode = ParseModeHTML
	default:
		tg.ParseMode = ParseModeMarkdownV2
	}
	if tg.MaxPhotos <= 0 || tg.MaxPhotos > 5 {
		tg.MaxPhotos = def.Notifications.Telegram.MaxPhotos
	}
	if tg.APIBaseURL == "" {
		tg.APIBaseURL = def.Notifications.Telegram.APIBaseURL
	}
	if tg.DefaultRetryAfter <= 0 {
		tg.DefaultRetryAfter = def.Notifications.Telegram.DefaultRetryAfter
	}

	switch c.Storage.Backend {
	case BackendFile, BackendRedis:
	default:
		c.Storage.Backend = BackendFile
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = def.Storage.DataDir
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, fallbackZone)
		loc, _ = time.LoadLocation(fallbackZone)
	}
	c.Scheduler.location = loc
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{
			Interval:          2 * time.Minute,
			Timezone:          defaultTimezone,
			PreFetch:          Window{Min: time.Second, Max: 4 * time.Second},
			BetweenDeliveries: Window{Min: 6 * time.Second, Max: 10 * time.Second},
			BetweenCategories: Window{Min: 3500 * time.Millisecond, Max: 13500 * time.Millisecond},
			CategoryBackoff:   Window{Min: 4 * time.Second, Max: 8500 * time.Millisecond},
		},
		Site: SiteConfig{
			Name:       "olx-kz",
			Scanner:    "olx",
			BaseURL:    "https://www.olx.kz",
			Domain:     "olx.kz",
			TimeOffset: 5 * time.Hour,
		},
		Enrich: EnrichConfig{
			Attempts:         2,
			Backoff:          3 * time.Second,
			Timeout:          15 * time.Second,
			PreFetch:         Window{Min: 2500 * time.Millisecond, Max: 5 * time.Second},
			Render:           true,
			RenderTimeout:    45 * time.Second,
			ViewCount:        false,
			Phone:            true,
			DescriptionLimit: 3000,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{
				APIBaseURL:        "https://api.telegram.org",
				ParseMode:         ParseModeMarkdownV2,
				MaxPhotos:         5,
				MaxPhotoBytes:     10 << 20,
				MinInterval:       time.Second,
				Timeout:           30 * time.Second,
				DefaultRetryAfter: 30 * time.Second,
			},
		},
		Policy: PolicyConfig{
			PrivateOnlyCategories: []string{"astelec", "astlaptop"},
		},
		Storage: StorageConfig{Backend: BackendFile, DataDir: "data"},
		Redis:   RedisConfig{Addr: "localhost:6379", KeyPrefix: "olxwatch"},
		NATS:    NATSConfig{Subject: "olxwatch.events"},
	}
}
