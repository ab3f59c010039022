package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PricingResolver resolves the unit price a client pays for a product and
// manages the price data it reads from.
type PricingResolver interface {
	// Resolve returns the client override price if one exists, else the product
	// base price. A product with neither yields ErrNoPriceDefined.
	Resolve(ctx context.Context, clientID, productID int) (decimal.Decimal, error)
	// ResolveTx is Resolve inside the caller's transaction.
	ResolveTx(ctx context.Context, tx pgx.Tx, clientID, productID int) (decimal.Decimal, error)

	SetClientPrice(ctx context.Context, clientID, productID int, price decimal.Decimal) (*ClientPrice, error)
	RemoveClientPrice(ctx context.Context, clientID, productID int) error
	ListClientPrices(ctx context.Context, clientID int) ([]ClientPrice, error)

	// SetBasePrice changes a product's base price and appends it to the price history.
	// Products already sold on a validated invoice keep their base price.
	SetBasePrice(ctx context.Context, productID int, price decimal.Decimal) (*Product, error)
	PriceHistory(ctx context.Context, productID int) ([]PriceChange, error)
}

type pricingResolver struct {
	pool  *pgxpool.Pool
	audit AuditSink
}

func NewPricingResolver(pool *pgxpool.Pool, sink AuditSink) PricingResolver {
	return &pricingResolver{pool: pool, audit: sink}
}

func (r *pricingResolver) Resolve(ctx context.Context, clientID, productID int) (decimal.Decimal, error) {
	return resolvePrice(ctx, r.pool, clientID, productID)
}

func (r *pricingResolver) ResolveTx(ctx context.Context, tx pgx.Tx, clientID, productID int) (decimal.Decimal, error) {
	return resolvePrice(ctx, tx, clientID, productID)
}

func resolvePrice(ctx context.Context, q pgxQuerier, clientID, productID int) (decimal.Decimal, error) {
	if _, err := getClient(ctx, q, clientID); err != nil {
		return decimal.Zero, err
	}

	var name string
	var base, override *decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT p.name, p.base_price, cp.price
		FROM products p
		LEFT JOIN client_prices cp ON cp.product_id = p.id AND cp.client_id = $1
		WHERE p.id = $2
	`, clientID, productID).Scan(&name, &base, &override)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFoundf("product %d", productID)
		}
		return decimal.Zero, fmt.Errorf("failed to resolve price for product %d: %w", productID, err)
	}

	switch {
	case override != nil:
		return *override, nil
	case base != nil:
		return *base, nil
	}
	return decimal.Zero, fmt.Errorf("%w: product %s has no base price and client %d has no override",
		ErrNoPriceDefined, name, clientID)
}

func (r *pricingResolver) SetClientPrice(ctx context.Context, clientID, productID int, price decimal.Decimal) (*ClientPrice, error) {
	if price.IsNegative() {
		return nil, validationf("price cannot be negative, got %s", price)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var before *decimal.Decimal
	err = tx.QueryRow(ctx,
		"SELECT price FROM client_prices WHERE client_id = $1 AND product_id = $2 FOR UPDATE",
		clientID, productID,
	).Scan(&before)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to read client price: %w", err)
	}

	var cp ClientPrice
	err = tx.QueryRow(ctx, `
		INSERT INTO client_prices (client_id, product_id, price, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (client_id, product_id) DO UPDATE SET price = EXCLUDED.price, updated_at = NOW()
		RETURNING client_id, product_id, price, updated_at,
		          (SELECT name FROM products WHERE id = $2)
	`, clientID, productID, price).Scan(&cp.ClientID, &cp.ProductID, &cp.Price, &cp.UpdatedAt, &cp.ProductName)
	if err != nil {
		return nil, wrapPgError(err, "set client price")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client price: %w", err)
	}
	audit(ctx, r.audit, "client_price.set", "client", clientID, "", before, cp)
	return &cp, nil
}

func (r *pricingResolver) RemoveClientPrice(ctx context.Context, clientID, productID int) error {
	var before decimal.Decimal
	err := r.pool.QueryRow(ctx,
		"DELETE FROM client_prices WHERE client_id = $1 AND product_id = $2 RETURNING price",
		clientID, productID,
	).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("no price override for client %d, product %d", clientID, productID)
		}
		return fmt.Errorf("failed to remove client price: %w", err)
	}
	audit(ctx, r.audit, "client_price.remove", "client", clientID, "", before, nil)
	return nil
}

func (r *pricingResolver) ListClientPrices(ctx context.Context, clientID int) ([]ClientPrice, error) {
	if _, err := getClient(ctx, r.pool, clientID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT cp.client_id, cp.product_id, p.name, cp.price, cp.updated_at
		FROM client_prices cp
		JOIN products p ON p.id = cp.product_id
		WHERE cp.client_id = $1
		ORDER BY p.name
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query client prices: %w", err)
	}
	defer rows.Close()

	prices := []ClientPrice{}
	for rows.Next() {
		var cp ClientPrice
		if err := rows.Scan(&cp.ClientID, &cp.ProductID, &cp.ProductName, &cp.Price, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client price: %w", err)
		}
		prices = append(prices, cp)
	}
	return prices, rows.Err()
}

func (r *pricingResolver) SetBasePrice(ctx context.Context, productID int, price decimal.Decimal) (*Product, error) {
	if price.IsNegative() {
		return nil, validationf("price cannot be negative, got %s", price)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := scanProduct(tx.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product %d", productID)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", productID, err)
	}

	if before.BasePrice != nil {
		sold, err := soldOnValidatedInvoice(ctx, tx, productID)
		if err != nil {
			return nil, err
		}
		if sold {
			return nil, invalidStatef("product %s is on a validated invoice; its base price is frozen", before.Name)
		}
	}

	after, err := scanProduct(tx.QueryRow(ctx,
		"UPDATE products SET base_price = $1 WHERE id = $2 RETURNING "+productColumns,
		price, productID,
	))
	if err != nil {
		return nil, wrapPgError(err, "update base price")
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO product_price_history (product_id, price, actor) VALUES ($1, $2, $3)",
		productID, price, ActorFrom(ctx),
	); err != nil {
		return nil, fmt.Errorf("failed to append price history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit base price: %w", err)
	}
	audit(ctx, r.audit, "product.set_price", "product", productID, "", before.BasePrice, after.BasePrice)
	return after, nil
}

func (r *pricingResolver) PriceHistory(ctx context.Context, productID int) ([]PriceChange, error) {
	if _, err := getProduct(ctx, r.pool, productID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, price, actor, changed_at
		FROM product_price_history
		WHERE product_id = $1
		ORDER BY id
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	history := []PriceChange{}
	for rows.Next() {
		var pc PriceChange
		if err := rows.Scan(&pc.ID, &pc.ProductID, &pc.Price, &pc.Actor, &pc.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price change: %w", err)
		}
		history = append(history, pc)
	}
	return history, rows.Err()
}
