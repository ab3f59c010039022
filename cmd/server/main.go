package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "github.com/fodouopn/gsa-manager/internal/adapters/web"
	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/fodouopn/gsa-manager/internal/cache"
	"github.com/fodouopn/gsa-manager/internal/config"
	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/fodouopn/gsa-manager/internal/db"
	"github.com/fodouopn/gsa-manager/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool, logger); err != nil {
		logger.WithError(err).Fatal("migrations")
	}

	balances, locker, closeCache, err := cache.Open(ctx, cfg.RedisAddress, cfg.BalanceCacheTTL, logger)
	if err != nil {
		logger.WithError(err).Fatal("redis")
	}
	defer closeCache()
	if cfg.RedisAddress == "" {
		logger.Warn("REDIS_ADDRESS is not set: balance cache disabled, compaction runs unlocked")
	}

	services := app.NewServices(pool, balances, cfg.EngineOptions(), core.NewLogAuditSink(logger))
	svc := app.NewAppService(services)

	worker := core.NewSnapshotWorker(services.Stock, locker, cfg.SnapshotInterval, logger)
	go worker.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			config.LogError(logger, "main", "Shutdown", "graceful shutdown failed", nil, err)
		}
	}()

	logger.WithField("port", cfg.Port).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("server")
	}
	logger.Info("server stopped")
}
