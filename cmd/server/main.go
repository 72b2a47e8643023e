// Package main is the entry point for the stock forecast API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"stockforecast/internal/app"
	"stockforecast/internal/core/idempotency"
	"stockforecast/internal/core/security"
	"stockforecast/internal/domain/auth"
	"stockforecast/internal/infrastructure/cache"
	v1 "stockforecast/internal/infrastructure/http/v1"
	"stockforecast/internal/infrastructure/http/v1/handlers"
	"stockforecast/internal/infrastructure/storage/memory"
	"stockforecast/internal/infrastructure/storage/postgres"
	"stockforecast/pkg/config"
	"stockforecast/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

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

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockforecast server", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	checks := map[string]handlers.Pinger{}

	// --- Redis (optional) ---
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalw("failed to connect to redis", "error", err)
		}
		defer func() { _ = redisClient.Close() }()
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		log.Infow("redis connection established", "addr", cfg.Redis.Addr)
	}

	// --- Storage ---
	var (
		repos app.Repositories
		store idempotency.Store
	)
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		repos = app.MemoryRepositories(memory.NewStore())
		log.Warn("using in-memory storage, data is lost on restart")

	default:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		checks["database"] = pool
		log.Info("database connection established")

		txm := postgres.NewTxManager(pool)
		repos, err = app.PostgresRepositories(txm, redisClient != nil)
		if err != nil {
			log.Fatalw("failed to build repositories", "error", err)
		}
		if redisClient == nil {
			store = postgres.NewIdempotencyStore(txm, cfg.HTTP.IdempotencyTTL)
		}
	}
	if redisClient != nil {
		store = cache.NewIdempotencyStore(redisClient, "stockforecast:idem:", cfg.HTTP.IdempotencyTTL)
	}

	services := app.NewServices(repos, log.Desugar())

	// --- Access ---
	readPolicy, err := security.CompileAccessPolicy(cfg.Access.ReadPolicy)
	if err != nil {
		log.Fatalw("invalid read policy", "error", err)
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.JWT.Secret,
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: cfg.JWT.AccessTTL,
	})

	// --- Router ---
	mode := gin.ReleaseMode
	if cfg.IsDevelopment() {
		mode = gin.DebugMode
	}
	var idem idempotency.Store
	if store != nil && cfg.HTTP.IdempotencyTTL > 0 {
		idem = store
	}
	router := v1.NewRouter(v1.RouterConfig{
		Services:     services,
		Logger:       log,
		JWTValidator: jwtService,
		ReadPolicy:   readPolicy,
		Idempotency:  idem,
		Health:       checks,
		Mode:         mode,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.App.Port, "idempotency", idem != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
