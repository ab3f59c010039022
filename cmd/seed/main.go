// seed loads a starter catalogue (products and a walk-in client) into an empty
// database. It does nothing when products already exist.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"

	"github.com/fodouopn/gsa-manager/internal/app"
	"github.com/fodouopn/gsa-manager/internal/config"
	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/fodouopn/gsa-manager/internal/db"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var starterProducts = []app.ProductRequest{
	{Name: "Pils 33cl", SaleUnit: "BOTTLE", Category: "BEER", BasePrice: price("1.20"), LowStockThreshold: decimal.NewFromInt(48)},
	{Name: "Pils 33cl x24", SaleUnit: "CASE", Category: "BEER", BasePrice: price("26.00"), LowStockThreshold: decimal.NewFromInt(10)},
	{Name: "Blonde 50cl x6", SaleUnit: "PACK", Category: "BEER", BasePrice: price("9.90"), LowStockThreshold: decimal.NewFromInt(12)},
	{Name: "Orange 1L", SaleUnit: "BOTTLE", Category: "JUICE", BasePrice: price("2.40"), LowStockThreshold: decimal.NewFromInt(24)},
	{Name: "Ananas 25cl x12", SaleUnit: "PACK", Category: "JUICE", BasePrice: price("8.50"), LowStockThreshold: decimal.NewFromInt(6)},
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	ctx := core.WithActor(context.Background(), "seed")
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database")
	}
	defer pool.Close()

	svc := app.NewAppService(app.NewServices(pool, core.NopBalanceCache(), cfg.EngineOptions(), core.NopAuditSink()))

	existing, err := svc.ListProducts(ctx, app.ListRequest{PageSize: 1, IncludeInactive: true})
	if err != nil {
		logger.WithError(err).Fatal("failed to inspect catalogue")
	}
	if existing.Total > 0 {
		logger.WithField("products", existing.Total).Info("catalogue already present, nothing to seed")
		return
	}

	for _, req := range starterProducts {
		p, err := svc.CreateProduct(ctx, req)
		if err != nil {
			logger.WithError(err).WithField("product", req.Name).Fatal("failed to create product")
		}
		logger.WithField("id", p.ID).WithField("product", p.Name).Info("product created")
	}

	client, err := svc.CreateClient(ctx, app.ClientRequest{Name: "Comptoir (vente directe)"})
	if err != nil {
		logger.WithError(err).Fatal("failed to create walk-in client")
	}
	logger.WithField("id", client.ID).Info("walk-in client created")
	logger.Info("Seed data loaded successfully.")
}
