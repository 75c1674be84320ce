package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"OlxWatcher/internal/category"
	"OlxWatcher/internal/clock"
	"OlxWatcher/internal/config"
	"OlxWatcher/internal/formatter"
	"OlxWatcher/internal/freshness"
	"OlxWatcher/internal/infrastructure/enricher"
	"OlxWatcher/internal/infrastructure/media"
	"OlxWatcher/internal/infrastructure/parser"
	"OlxWatcher/internal/infrastructure/scheduler"
	"OlxWatcher/internal/infrastructure/storage"
	"OlxWatcher/internal/infrastructure/telegram"
	"OlxWatcher/internal/logging"
	"OlxWatcher/internal/metrics"
	"OlxWatcher/internal/observer"
	"OlxWatcher/internal/ports"
	"OlxWatcher/internal/scanner"
	"OlxWatcher/internal/usecase"
)

var _ category.Store = (*storage.LinksStore)(nil)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	registry  *prometheus.Registry
	closers   []func() error
}

// New builds the full scrape and delivery stack. Optional backends (Redis,
// Postgres, NATS) are connected only when configured.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger, registry: prometheus.NewRegistry()}

	links, err := storage.OpenLinksStore(cfg.Storage.DataDir, baseLogger.With("component", "storage.links"))
	if err != nil {
		return nil, fmt.Errorf("open links: %w", err)
	}

	store, err := a.openDedupStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	archive, err := a.openArchive(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	obs, err := a.buildObserver()
	if err != nil {
		a.Close()
		return nil, err
	}

	pacer := clock.NewPacer(clock.Real{}, nil)
	markup := parser.NewOLXMarkup(cfg.Site.BaseURL)
	dates := freshness.NewParser(cfg.Site.TimeOffset, cfg.Scheduler.Location())

	registry := scanner.NewRegistry()
	registry.Register(parser.NewOLXScanner(nil, markup, dates, baseLogger.With("component", "scanner.olx")))
	source := parser.NewStrategySource(registry, cfg.Site, baseLogger.With("component", "source"))

	tg := cfg.Notifications.Telegram
	notifier := telegram.NewNotifier(tg.APIBaseURL, tg.BotToken, tg.ChatID, tg.ParseMode, tg.Timeout)
	if !notifier.HasChat() {
		baseLogger.Warn("no telegram chat configured, listings will not be delivered")
	}

	var limiter *rate.Limiter
	if tg.MinInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(tg.MinInterval), 1)
	}

	dispatcher := usecase.NewDispatcher(usecase.DispatcherDeps{
		Messenger:         notifier,
		Photos:            media.NewDownloader(media.NewSafeClient(tg.Timeout), tg.MaxPhotoBytes, baseLogger.With("component", "media")),
		Store:             store,
		Formatter:         formatter.New(tg.ParseMode),
		Limiter:           limiter,
		Pacer:             pacer,
		Observer:          obs,
		Logger:            baseLogger.With("component", "dispatcher"),
		ChatConfigured:    notifier.HasChat(),
		MaxPhotos:         tg.MaxPhotos,
		DefaultRetryAfter: tg.DefaultRetryAfter,
	})

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Links:      links,
		Source:     source,
		Store:      store,
		Archive:    archive,
		Enricher:   a.buildEnricher(markup, pacer),
		Policy:     formatter.NewPolicy(cfg.Policy.PrivateOnlyCategories),
		Dispatcher: dispatcher,
		Pacer:      pacer,
		Observer:   obs,
		Logger:     baseLogger.With("component", "pipeline"),
		Pacing: usecase.Pacing{
			PreFetch:          clock.Window(cfg.Scheduler.PreFetch),
			BetweenDeliveries: clock.Window(cfg.Scheduler.BetweenDeliveries),
			BetweenCategories: clock.Window(cfg.Scheduler.BetweenCategories),
			CategoryBackoff:   clock.Window(cfg.Scheduler.CategoryBackoff),
		},
	})
	a.scheduler = usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval, clock.Real{}),
		a.pipeline,
		baseLogger.With("component", "scheduler"),
	)
	return a, nil
}

// Run drives the pipeline until ctx is cancelled, serving metrics when configured.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	metricsErr := make(chan error, 1)
	if a.cfg.Metrics.Addr != "" {
		go func() {
			metricsErr <- metrics.Serve(ctx, a.cfg.Metrics.Addr, a.registry, a.logger.With("component", "metrics"))
		}()
	}

	a.logger.Info("watcher started",
		slog.Duration("interval", a.cfg.Scheduler.Interval),
		slog.String("site", a.cfg.Site.Name),
		slog.String("storage", a.cfg.Storage.Backend))

	err := a.scheduler.Run(ctx)
	cancel()
	if a.cfg.Metrics.Addr != "" {
		if mErr := <-metricsErr; mErr != nil && err == nil {
			err = fmt.Errorf("metrics server: %w", mErr)
		}
	}
	return err
}

// RunOnce performs a single cycle.
func (a *Application) RunOnce(ctx context.Context) error {
	return a.pipeline.RunCycle(ctx, time.Now().In(a.cfg.Scheduler.Location()))
}

// Close releases optional backends.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) openDedupStore(ctx context.Context) (ports.DedupStore, error) {
	if a.cfg.Storage.Backend == config.BackendRedis {
		rc := a.cfg.Redis
		client, err := storage.DialRedis(ctx, rc.Addr, rc.Password, rc.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisStore(client, rc.KeyPrefix), nil
	}

	store, err := storage.OpenFileStore(a.cfg.Storage.DataDir, a.logger.With("component", "storage.file"))
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	return store, nil
}

func (a *Application) openArchive(ctx context.Context) (ports.ListingArchive, error) {
	if a.cfg.Database.DSN == "" {
		return nil, nil
	}
	db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	archive := storage.NewPostgresArchive(db)
	if a.cfg.Database.Migrate {
		if err := archive.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	return archive, nil
}

func (a *Application) buildObserver() (observer.Observer, error) {
	sinks := observer.Multi{
		observer.NewSlogSink(a.logger.With("component", "events")),
		metrics.NewCollector(a.registry),
	}
	if a.cfg.NATS.URL != "" {
		pub, err := observer.ConnectNATS(a.cfg.NATS.URL, a.cfg.NATS.Subject, a.logger.With("component", "nats"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		sinks = append(sinks, pub)
	}
	return sinks, nil
}

func (a *Application) buildEnricher(markup *parser.OLXMarkup, pacer *clock.Pacer) *enricher.Enricher {
	ec := a.cfg.Enrich

	var renderer enricher.Renderer
	if ec.Render {
		renderer = enricher.NewChromeRenderer(ec.ChromePath, ec.RenderTimeout, a.logger.With("component", "renderer"))
	}
	var phones *enricher.PhoneLookup
	if ec.Phone {
		phones = enricher.NewPhoneLookup(&http.Client{Timeout: ec.Timeout}, a.cfg.Site.BaseURL)
	}

	return enricher.New(
		enricher.NewStaticFetcher(ec.Timeout, a.cfg.Site.BaseURL),
		renderer,
		phones,
		markup,
		pacer,
		enricher.Options{
			Attempts:         ec.Attempts,
			Backoff:          ec.Backoff,
			PreFetch:         clock.Window(ec.PreFetch),
			ViewCount:        ec.ViewCount,
			Phone:            ec.Phone,
			DescriptionLimit: ec.DescriptionLimit,
		},
		a.logger.With("component", "enricher"),
	)
}
