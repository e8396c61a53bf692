package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"circularscan/internal/api"
	"circularscan/internal/config"
	"circularscan/internal/dispatch"
	"circularscan/internal/extract"
	"circularscan/internal/infrastructure/parser"
	"circularscan/internal/infrastructure/queue"
	"circularscan/internal/infrastructure/scheduler"
	"circularscan/internal/infrastructure/storage"
	"circularscan/internal/infrastructure/textmine"
	"circularscan/internal/labelmap"
	"circularscan/internal/logging"
	"circularscan/internal/ports"
	"circularscan/internal/scanner"
	"circularscan/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	dispatcher *dispatch.Dispatcher
	scheduler  *usecase.Scheduler
	server     *api.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repository := storage.NewPostgresRepository(db)

	labels := labelmap.New(cfg.Labels.OverridePath, baseLogger.With("component", "labelmap"))

	registry := scanner.NewRegistry()
	registry.Register(parser.NewCircularScanner(nil, labels, baseLogger.With("component", "scanner.customs")))
	source := parser.NewStrategySource(registry, "customs", cfg.Source, baseLogger.With("component", "source"))

	var extractor ports.Extractor = extract.NewEngine()
	if cfg.TextMine.URL != "" {
		extractor = textmine.NewClient(cfg.TextMine.URL, cfg.TextMine.APIKey)
	}

	broker := queue.NewRedisBroker(cfg.Queue.RedisAddr, baseLogger.With("component", "broker"))
	dispatcher := dispatch.NewDispatcher(dispatch.Deps{
		Broker:    broker,
		Ledger:    repository,
		Extractor: extractor,
		Logger:    baseLogger.With("component", "dispatcher"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: repository,
		Dispatcher: dispatcher,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.IntervalDuration())

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		dispatcher: dispatcher,
		scheduler:  usecase.NewScheduler(driver, pipeline),
		server:     api.NewServer(cfg.API.Addr, pipeline, repository, baseLogger.With("component", "api")),
	}, nil
}

// Run starts the scheduler and the HTTP surface, then blocks until the
// context is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start()
	}()
	a.logger.Info("circularscan started", "addr", a.cfg.API.Addr, "interval", a.cfg.Scheduler.IntervalDuration())

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve api: %w", err)
		}
	}

	return a.shutdown()
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = a.scheduler.Stop(ctx)
	_ = a.server.Stop(ctx)

	if err := a.dispatcher.Shutdown(ctx); err != nil {
		a.logger.Warn("dispatcher shutdown", "error", err)
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
