// migrate applies the embedded schema migrations and exits.
//
// Usage: go run ./cmd/migrate
package main

import (
	"context"
	"time"

	"github.com/fodouopn/gsa-manager/internal/config"
	"github.com/fodouopn/gsa-manager/internal/db"
	"github.com/fodouopn/gsa-manager/migrations"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("[CONNECT] failed")
	}
	defer pool.Close()
	logger.Info("[CONNECT] success")

	if err := migrations.Apply(ctx, pool, logger); err != nil {
		logger.WithError(err).Fatal("[MIGRATE] failed")
	}
	logger.Info("[DONE] All migrations processed.")
}
