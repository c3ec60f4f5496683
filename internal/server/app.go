// Package server builds the pipelinewatch process: storage backend,
// database pool, notifier, scan scheduler and HTTP report service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/pipelinewatch/internal/api"
	"github.com/JakeFAU/pipelinewatch/internal/clock/system"
	"github.com/JakeFAU/pipelinewatch/internal/config"
	"github.com/JakeFAU/pipelinewatch/internal/counter"
	"github.com/JakeFAU/pipelinewatch/internal/database"
	"github.com/JakeFAU/pipelinewatch/internal/notify"
	notifypubsub "github.com/JakeFAU/pipelinewatch/internal/notify/pubsub"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
	"github.com/JakeFAU/pipelinewatch/internal/scheduler"
	"github.com/JakeFAU/pipelinewatch/internal/series"
	storagepkg "github.com/JakeFAU/pipelinewatch/internal/storage"
	gcsstorage "github.com/JakeFAU/pipelinewatch/internal/storage/gcs"
	localstorage "github.com/JakeFAU/pipelinewatch/internal/storage/local"
	memorystorage "github.com/JakeFAU/pipelinewatch/internal/storage/memory"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	scheduler *scheduler.Scheduler

	pool         *pgxpool.Pool
	gcs          *storage.Client
	local        *localstorage.Store
	pubsubClient *pubsub.Client
	publisher    *notifypubsub.Publisher
}

// Build creates the application's dependencies. Resources acquired before a
// failure are released before returning.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	built := false
	defer func() {
		if !built {
			app.closeInfrastructure()
		}
	}()

	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("pipelines", len(cfg.Pipelines)),
	)

	db, err := app.setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	pipelines, err := pipeline.Build(cfg.Pipelines, db)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	provider, err := app.setupStorage(ctx)
	if err != nil {
		return nil, err
	}
	store, err := series.NewStore(provider)
	if err != nil {
		return nil, fmt.Errorf("series store init failed: %w", err)
	}
	notifier, err := app.setupNotifier(ctx)
	if err != nil {
		return nil, err
	}

	epoch, err := cfg.Epoch()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := system.New(loc)
	scanner, err := scheduler.NewScanner(scheduler.ScannerConfig{
		Store:     store,
		Pipelines: pipelines,
		Notifier:  notifier,
		Clock:     clk,
		Epoch:     epoch,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("scanner init failed: %w", err)
	}
	app.scheduler, err = scheduler.New(scanner, system.Tickers{}, clk, cfg.Scan.Interval, logger)
	if err != nil {
		return nil, fmt.Errorf("scheduler init failed: %w", err)
	}
	app.apiServer = api.NewServer(pipelines, store, app.scheduler, *cfg, logger)
	built = true
	return app, nil
}

// Handler exposes the HTTP report service.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the scheduler and HTTP server and blocks until ctx is cancelled
// or the server fails. The in-flight scan finishes before Run returns.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.scheduler.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()
	a.Close()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases infrastructure clients. It is safe to call more than once.
func (a *App) Close() {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
		a.pubsubClient = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.local != nil {
		if err := a.local.Unlock(); err != nil {
			a.logger.Warn("snapshot dir unlock failed", zap.Error(err))
		}
		a.local = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func (a *App) setupDatabase(ctx context.Context) (counter.Querier, error) {
	if !pipeline.NeedsDatabase(a.cfg.Pipelines) {
		a.logger.Info("no query stages configured, skipping database pool")
		return nil, nil
	}
	pool, err := database.Open(ctx, database.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	a.pool = pool
	a.logger.Info("database pool initialized", zap.Int32("max_conns", pool.Config().MaxConns))
	return pool, nil
}

func (a *App) setupStorage(ctx context.Context) (storagepkg.Provider, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcs = client
		store, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: a.cfg.Storage.GCSBucket,
			Prefix: a.cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
		a.logger.Info("using GCS snapshot backend",
			zap.String("bucket", a.cfg.Storage.GCSBucket),
			zap.String("prefix", a.cfg.Storage.Prefix),
		)
		return store, nil
	case config.BackendLocal:
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Dir})
		if err != nil {
			return nil, fmt.Errorf("local snapshot store init failed: %w", err)
		}
		if err := store.TryLock(); err != nil {
			return nil, fmt.Errorf("local snapshot store init failed: %w", err)
		}
		a.local = store
		a.logger.Info("using local snapshot backend", zap.String("dir", a.cfg.Storage.Dir))
		return store, nil
	default:
		a.logger.Warn("using in-memory snapshot backend; snapshots are lost on exit")
		return memorystorage.New(), nil
	}
}

func (a *App) setupNotifier(ctx context.Context) (notify.Notifier, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub topic configured, scan notifications disabled")
		return notify.Noop{}, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.publisher, err = notifypubsub.New(client.Topic(a.cfg.PubSub.TopicName))
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub notifier initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return a.publisher, nil
}
