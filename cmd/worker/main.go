// Package main is the entry point for the stock forecast background worker.
// It relays report row changes from the outbox to Redis, periodically
// recomputes the forecast horizon and cleans up expired bookkeeping.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"stockforecast/internal/app"
	appctx "stockforecast/internal/core/context"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/cache"
	"stockforecast/internal/infrastructure/storage/postgres"
	"stockforecast/pkg/config"
	"stockforecast/pkg/logger"
)

const (
	cleanupInterval    = time.Hour
	publishedRetention = 7 * 24 * time.Hour
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		fmt.Fprintln(os.Stderr, "worker requires postgres storage")
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting stockforecast worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = redisClient.Close() }()
	}

	repos, err := app.PostgresRepositories(txm, redisClient != nil)
	if err != nil {
		log.Fatalw("failed to build repositories", "error", err)
	}
	services := app.NewServices(repos, log.Desugar())

	w := &Worker{
		cfg:         cfg.Worker,
		log:         log.WithComponent("worker"),
		forecast:    services.Forecast,
		idempotency: postgres.NewIdempotencyStore(txm, cfg.HTTP.IdempotencyTTL),
	}
	if redisClient != nil {
		w.relay = postgres.NewOutboxRelay(txm, cfg.Worker.BatchSize, cache.NewRowPublisher(redisClient, cache.RowsChannel))
	} else {
		log.Warn("redis is not configured, outbox relay disabled")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker runs the periodic background jobs.
type Worker struct {
	cfg         config.WorkerConfig
	log         *logger.Logger
	relay       *postgres.OutboxRelay
	forecast    *forecast.Service
	idempotency *postgres.IdempotencyStore
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(w.cfg.PollInterval)
	defer poll.Stop()

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	// A zero interval disables the periodic recompute.
	var recompute <-chan time.Time
	if w.cfg.RecomputeInterval > 0 {
		t := time.NewTicker(w.cfg.RecomputeInterval)
		defer t.Stop()
		recompute = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			w.processOutbox(appctx.ForJob(ctx, "outbox"))
		case <-recompute:
			w.recomputeHorizon(appctx.ForJob(ctx, "recompute"))
		case <-cleanup.C:
			jobCtx := appctx.ForJob(ctx, "cleanup")
			w.cleanupOutbox(jobCtx)
			w.cleanupIdempotency(jobCtx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	if w.relay == nil {
		return
	}
	// Drain the backlog before waiting for the next tick.
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("relayed outbox batch", "count", n)
		}
		if n < w.cfg.BatchSize {
			return
		}
	}
}

func (w *Worker) recomputeHorizon(ctx context.Context) {
	from := types.Today()
	to := from.AddDate(0, 0, w.cfg.RecomputeHorizonDays)

	n, err := w.forecast.RecomputeRange(ctx, from, to)
	if err != nil {
		w.log.Errorw("forecast recompute failed", "rows", n, "error", err)
	}
}

func (w *Worker) cleanupOutbox(ctx context.Context) {
	if w.relay == nil {
		return
	}
	if moved, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("move to DLQ failed", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved failed outbox messages to DLQ", "count", moved)
	}

	if purged, err := w.relay.PurgePublished(ctx, time.Now().Add(-publishedRetention)); err != nil {
		w.log.Errorw("purge published outbox failed", "error", err)
	} else if purged > 0 {
		w.log.Infow("purged published outbox messages", "count", purged)
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.idempotency.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
