// gsa runs one-shot operations against the ledger database.
//
// Usage: go run ./cmd/gsa <command> [args]
package main

import (
	"context"
	"os"

	"github.com/fodouopn/gsa-manager/internal/adapters/cli"
	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/fodouopn/gsa-manager/internal/cache"
	"github.com/fodouopn/gsa-manager/internal/config"
	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/fodouopn/gsa-manager/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)
	logger.SetOutput(os.Stderr)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	defer pool.Close()

	// The server may be caching balances; postings from here must invalidate the same keys.
	balances, _, closeCache, err := cache.Open(ctx, cfg.RedisAddress, cfg.BalanceCacheTTL, logger)
	if err != nil {
		logger.WithError(err).Fatal("redis")
	}
	defer closeCache()

	sink := core.NewLogAuditSink(logger)
	svc := app.NewAppService(app.NewServices(pool, balances, cfg.EngineOptions(), sink))

	if err := cli.Run(core.WithActor(ctx, "cli"), svc, os.Args[1:], os.Stdout); err != nil {
		logger.WithError(err).Error("command failed")
		closeCache()
		pool.Close()
		os.Exit(1)
	}
}
