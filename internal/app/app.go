package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"PaperScanner/internal/api"
	"PaperScanner/internal/conference"
	"PaperScanner/internal/config"
	"PaperScanner/internal/infrastructure/parser"
	"PaperScanner/internal/infrastructure/resilience"
	"PaperScanner/internal/infrastructure/scheduler"
	"PaperScanner/internal/infrastructure/storage"
	"PaperScanner/internal/infrastructure/telegram"
	"PaperScanner/internal/logging"
	"PaperScanner/internal/observability/metrics"
	"PaperScanner/internal/ports"
	"PaperScanner/internal/scanner"
	"PaperScanner/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	store      *storage.SQLiteRepository
	classifier *conference.Classifier
	metrics    *metrics.Metrics
	pipeline   *usecase.Pipeline
	catalog    *usecase.Catalog
	scheduler  *usecase.Scheduler
}

// New opens the cache and builds every component. Close releases the database.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.OpenSQLite(ctx, cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: cfg.Source.Timeout}
	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivFeedScanner(client, cfg.Source.APIURL, cfg.Source.RequestInterval))
	registry.Register(parser.NewArxivListScanner(client, cfg.Source.ListURL, cfg.Source.RequestInterval))
	if _, err := registry.Resolve(cfg.Source.Scanner); err != nil {
		store.Close()
		return nil, fmt.Errorf("source.scanner: %w", err)
	}

	executor := resilience.NewExecutor(cfg.Resilience, baseLogger.With("component", "resilience"))
	source := parser.NewStrategySource(registry, cfg.Source.Scanner, executor, baseLogger.With("component", "source"))

	classifier := conference.NewClassifier(conference.NewMatcher(conference.DefaultRegistry(), cfg.Matching.Threshold), nil)
	pipelineMetrics := metrics.New()

	var notifier ports.RunNotifier
	if cfg.Notify.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notify.TelegramAPIURL, cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:            source,
		Store:             store,
		Classifier:        classifier,
		Venues:            classifier.Matcher(),
		Metrics:           pipelineMetrics,
		Notifier:          notifier,
		Logger:            baseLogger,
		Categories:        cfg.Source.Categories,
		MaxResults:        cfg.Source.PapersPerRefresh,
		DaysBack:          cfg.Source.DaysBack,
		RetentionDays:     cfg.Cache.Days,
		LegacyConferences: cfg.Cache.LegacyConferences,
		SearchMaxResults:  cfg.Source.SearchResults,
	})

	driver := scheduler.NewCronScheduler(
		cfg.Scheduler.CronExpression,
		cfg.Scheduler.Location(),
		cfg.Scheduler.RunOnStart,
		baseLogger.With("component", "cron"),
	)

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		classifier: classifier,
		metrics:    pipelineMetrics,
		pipeline:   pipeline,
		catalog:    usecase.NewCatalog(store, baseLogger),
		scheduler:  usecase.NewScheduler(driver, pipeline, cfg.Scheduler.RunTimeout, baseLogger),
	}, nil
}

func (a *Application) Pipeline() *usecase.Pipeline {
	return a.pipeline
}

func (a *Application) Catalog() *usecase.Catalog {
	return a.catalog
}

func (a *Application) Classifier() *conference.Classifier {
	return a.classifier
}

// Router exposes the HTTP surface without starting a listener.
func (a *Application) Router() *gin.Engine {
	return api.NewRouter(api.Deps{
		Catalog:       a.catalog,
		Runner:        a.pipeline,
		Classifier:    a.classifier,
		Metrics:       a.metrics,
		Status:        a.scheduler,
		Logger:        a.logger,
		SampleSize:    a.cfg.Source.PapersPerRefresh,
		MinConfidence: a.cfg.Matching.MinConfidence,
		RetentionDays: a.cfg.Cache.Days,
	})
}

// Serve starts the scheduled smart refresh and the HTTP API, blocking until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := api.Serve(ctx, a.cfg.HTTP.Addr, a.Router(), a.logger)

	stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Source.Timeout)
	defer cancel()
	return errors.Join(serveErr, a.scheduler.Stop(stopCtx))
}

func (a *Application) Close() error {
	return a.store.Close()
}
