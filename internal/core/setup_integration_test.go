package core_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/fodouopn/gsa-manager/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if err := migrations.Apply(ctx, pool, logger); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE purchase_payments, purchase_lines, purchases,
			credit_note_refunds, credit_notes, payments, acceptance_tokens,
			invoice_lines, invoices, document_sequences,
			container_received_lines, container_manifest_lines, containers,
			stock_snapshots, stock_movements, client_prices, product_price_history,
			products, clients
		RESTART IDENTITY CASCADE;
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

// fixture bundles the services over one test pool, wired the way the server wires them.
type fixture struct {
	pool       *pgxpool.Pool
	catalog    core.CatalogService
	pricing    core.PricingResolver
	stock      core.StockLedger
	containers core.ContainerService
	purchases  core.PurchaseLedger
	invoices   core.InvoiceEngine
	payments   core.PaymentAggregator
	audits     *auditLog
}

// auditLog keeps every record it receives.
type auditLog struct {
	mu      sync.Mutex
	records []core.AuditRecord
}

func (l *auditLog) Record(_ context.Context, rec core.AuditRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

func (l *auditLog) byAction(action string) []core.AuditRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []core.AuditRecord
	for _, r := range l.records {
		if r.Action == action {
			out = append(out, r)
		}
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	pool := setupTestDB(t)
	sink := &auditLog{}
	stock := core.NewStockLedger(pool, core.NopBalanceCache(), sink)
	pricing := core.NewPricingResolver(pool, sink)
	opts := core.InvoiceOptions{TaxRates: core.DefaultTaxRates()}
	return &fixture{
		pool:       pool,
		catalog:    core.NewCatalogService(pool, sink),
		pricing:    pricing,
		stock:      stock,
		containers: core.NewContainerService(pool, stock, sink),
		purchases:  core.NewPurchaseLedger(pool, stock, sink),
		invoices:   core.NewInvoiceEngine(pool, stock, pricing, opts, sink),
		payments:   core.NewPaymentAggregator(pool, opts.TaxRates, sink),
		audits:     sink,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) client(t *testing.T, name string) *core.Client {
	t.Helper()
	c, err := f.catalog.CreateClient(context.Background(), core.ClientInput{Name: name, IsActive: true})
	require.NoError(t, err)
	return c
}

func (f *fixture) product(t *testing.T, name string, category core.ProductCategory, price string) *core.Product {
	t.Helper()
	p := dec(price)
	prod, err := f.catalog.CreateProduct(context.Background(), core.ProductInput{
		Name:      name,
		SaleUnit:  core.UnitBottle,
		Category:  category,
		BasePrice: &p,
		IsActive:  true,
	})
	require.NoError(t, err)
	return prod
}

// stockUp brings a product's balance up by qty with a stocktake adjustment.
func (f *fixture) stockUp(t *testing.T, productID int, qty string) {
	t.Helper()
	_, err := f.stock.Adjust(context.Background(), productID, dec(qty), "opening stock")
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, productID int) decimal.Decimal {
	t.Helper()
	bal, err := f.stock.CurrentBalance(context.Background(), productID)
	require.NoError(t, err)
	return bal
}

// draftInvoice creates a tax-free draft for client with one line of qty × product.
func (f *fixture) draftInvoice(t *testing.T, clientID, productID int, qty string) *core.Invoice {
	t.Helper()
	ctx := context.Background()
	inv, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: clientID, Type: core.InvoiceDelivery})
	require.NoError(t, err)
	inv, err = f.invoices.ToggleTaxIncluded(ctx, inv.ID)
	require.NoError(t, err)
	require.False(t, inv.TaxIncluded)
	inv, err = f.invoices.AddLine(ctx, inv.ID, productID, dec(qty))
	require.NoError(t, err)
	return inv
}
