package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// StockLedger records stock as an append-only log of signed movements.
// A product's balance is always the sum of its movements; stock_snapshots only
// shortcut that sum and are rebuilt from history by Compact.
type StockLedger interface {
	// Post appends one movement in its own transaction. RECEPTION is rejected here:
	// goods in are posted by container and purchase validation through PostTx.
	Post(ctx context.Context, in MovementInput) (int64, error)
	// PostTx appends one movement inside the caller's transaction. The product row is
	// locked for the rest of that transaction; debits are rejected with
	// *InsufficientStockError when they would take the balance below zero.
	// Callers invalidate the cache with InvalidateCache after committing.
	PostTx(ctx context.Context, tx pgx.Tx, in MovementInput) (int64, error)

	CurrentBalance(ctx context.Context, productID int) (decimal.Decimal, error)
	BalanceAt(ctx context.Context, productID int, at time.Time) (decimal.Decimal, error)
	Balances(ctx context.Context, f StockFilter) ([]StockLevel, error)
	History(ctx context.Context, f MovementFilter) (*Page[StockMovement], error)
	// Valuation prices stock at current base prices, as of at when it is set.
	Valuation(ctx context.Context, at *time.Time) (*StockValuation, error)

	// Adjust posts a signed ADJUSTMENT, the only way to correct a stocktake difference.
	Adjust(ctx context.Context, productID int, qty decimal.Decimal, reason string) (*StockMovement, error)
	// RecordBreakage posts a BREAKAGE debit of qty (given as a positive number).
	RecordBreakage(ctx context.Context, productID int, qty decimal.Decimal, reason string) (*StockMovement, error)

	// Compact rebuilds the product's snapshot from its full movement history.
	Compact(ctx context.Context, productID int) error
	// CompactAll compacts every product with movements newer than its snapshot
	// and returns how many were rebuilt.
	CompactAll(ctx context.Context) (int, error)

	InvalidateCache(ctx context.Context, productIDs ...int)
}

type stockLedger struct {
	pool  *pgxpool.Pool
	cache BalanceCache
	audit AuditSink
}

func NewStockLedger(pool *pgxpool.Pool, cache BalanceCache, sink AuditSink) StockLedger {
	if cache == nil {
		cache = NopBalanceCache()
	}
	return &stockLedger{pool: pool, cache: cache, audit: sink}
}

// balanceSQL sums the snapshot and every movement recorded after it.
const balanceSQL = `
	SELECT COALESCE(s.quantity, 0) + COALESCE((
		SELECT SUM(m.quantity)
		FROM stock_movements m
		WHERE m.product_id = p.id AND m.id > COALESCE(s.last_movement_id, 0)
	), 0)
	FROM products p
	LEFT JOIN stock_snapshots s ON s.product_id = p.id
	WHERE p.id = $1
`

func balanceOf(ctx context.Context, q pgxQuerier, productID int) (decimal.Decimal, error) {
	var bal decimal.Decimal
	if err := q.QueryRow(ctx, balanceSQL, productID).Scan(&bal); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFoundf("product %d", productID)
		}
		return decimal.Zero, fmt.Errorf("failed to compute stock balance for product %d: %w", productID, err)
	}
	return bal, nil
}

func (s *stockLedger) Post(ctx context.Context, in MovementInput) (int64, error) {
	if in.Type == MovementReception {
		return 0, validationf("reception movements are posted by container or purchase validation")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	id, err := s.PostTx(ctx, tx, in)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit stock movement: %w", err)
	}
	s.cache.Invalidate(ctx, in.ProductID)
	audit(ctx, s.audit, "stock.post", "stock_movement", int(id), in.Reason, nil, in)
	return id, nil
}

func (s *stockLedger) PostTx(ctx context.Context, tx pgx.Tx, in MovementInput) (int64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}

	// Serializes every posting for this product, so the balance read below
	// cannot go stale before the insert commits.
	var productName string
	err := tx.QueryRow(ctx, "SELECT name FROM products WHERE id = $1 FOR UPDATE", in.ProductID).Scan(&productName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFoundf("product %d", in.ProductID)
		}
		return 0, fmt.Errorf("failed to lock product %d: %w", in.ProductID, err)
	}

	if in.Quantity.IsNegative() {
		available, err := balanceOf(ctx, tx, in.ProductID)
		if err != nil {
			return 0, err
		}
		if available.Add(in.Quantity).IsNegative() {
			return 0, &InsufficientStockError{
				ProductID:   in.ProductID,
				ProductName: productName,
				Available:   available,
				Requested:   in.Quantity.Neg(),
			}
		}
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO stock_movements (product_id, quantity, movement_type, reference, reason, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, in.ProductID, in.Quantity, string(in.Type), in.Reference, in.Reason, ActorFrom(ctx)).Scan(&id)
	if err != nil {
		return 0, wrapPgError(err, "insert stock movement")
	}
	return id, nil
}

func (s *stockLedger) CurrentBalance(ctx context.Context, productID int) (decimal.Decimal, error) {
	if bal, ok := s.cache.Get(ctx, productID); ok {
		return bal, nil
	}
	// Taken before the read: a posting that commits after it invalidates and
	// advances the generation, so the Set below is dropped rather than caching the older balance.
	gen := s.cache.Generation(ctx, productID)
	bal, err := balanceOf(ctx, s.pool, productID)
	if err != nil {
		return decimal.Zero, err
	}
	s.cache.Set(ctx, productID, bal, gen)
	return bal, nil
}

func (s *stockLedger) BalanceAt(ctx context.Context, productID int, at time.Time) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE((
			SELECT SUM(m.quantity) FROM stock_movements m
			WHERE m.product_id = p.id AND m.created_at <= $2
		), 0)
		FROM products p
		WHERE p.id = $1
	`, productID, at).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, notFoundf("product %d", productID)
		}
		return decimal.Zero, fmt.Errorf("failed to compute stock balance at %s: %w", at.Format(time.RFC3339), err)
	}
	return bal, nil
}

func (s *stockLedger) Balances(ctx context.Context, f StockFilter) ([]StockLevel, error) {
	var w whereBuilder
	if !f.IncludeInactive {
		w.add("p.is_active = ?", true)
	}
	if f.Category != "" {
		w.add("p.category = ?", string(f.Category))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("p.name ILIKE ?", "%"+q+"%")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.category, p.sale_unit, p.low_stock_threshold,
		       COALESCE(s.quantity, 0) + COALESCE(d.delta, 0)
		FROM products p
		LEFT JOIN stock_snapshots s ON s.product_id = p.id
		LEFT JOIN LATERAL (
			SELECT SUM(m.quantity) AS delta
			FROM stock_movements m
			WHERE m.product_id = p.id AND m.id > COALESCE(s.last_movement_id, 0)
		) d ON true`+w.sql()+`
		ORDER BY p.name, p.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock levels: %w", err)
	}
	defer rows.Close()

	levels := []StockLevel{}
	for rows.Next() {
		var sl StockLevel
		if err := rows.Scan(&sl.ProductID, &sl.ProductName, &sl.Category, &sl.SaleUnit,
			&sl.LowStockThreshold, &sl.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		sl.IsLow = sl.Quantity.LessThanOrEqual(sl.LowStockThreshold)
		if f.LowOnly && !sl.IsLow {
			continue
		}
		levels = append(levels, sl)
	}
	return levels, rows.Err()
}

func (s *stockLedger) History(ctx context.Context, f MovementFilter) (*Page[StockMovement], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if f.ProductID > 0 {
		w.add("m.product_id = ?", f.ProductID)
	}
	if f.Type != "" {
		w.add("m.movement_type = ?", string(f.Type))
	}
	if f.From != nil {
		w.add("m.created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("m.created_at <= ?", *f.To)
	}

	page := &Page[StockMovement]{Page: p.Page, PageSize: p.PageSize}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM stock_movements m"+w.sql(), w.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count stock movements: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.product_id, p.name, m.quantity, m.movement_type, m.reference, m.reason, m.actor, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id`+where+`
		ORDER BY m.id DESC`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock movements: %w", err)
	}
	defer rows.Close()

	page.Items = []StockMovement{}
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Quantity, &m.Type,
			&m.Reference, &m.Reason, &m.Actor, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		page.Items = append(page.Items, m)
	}
	return page, rows.Err()
}

func (s *stockLedger) Adjust(ctx context.Context, productID int, qty decimal.Decimal, reason string) (*StockMovement, error) {
	id, err := s.Post(ctx, MovementInput{
		ProductID: productID,
		Quantity:  qty,
		Type:      MovementAdjustment,
		Reference: "ADJ",
		Reason:    strings.TrimSpace(reason),
	})
	if err != nil {
		return nil, err
	}
	return s.movement(ctx, id)
}

func (s *stockLedger) RecordBreakage(ctx context.Context, productID int, qty decimal.Decimal, reason string) (*StockMovement, error) {
	if !qty.IsPositive() {
		return nil, validationf("breakage quantity must be positive, got %s", qty)
	}
	id, err := s.Post(ctx, MovementInput{
		ProductID: productID,
		Quantity:  qty.Neg(),
		Type:      MovementBreakage,
		Reference: "BREAKAGE",
		Reason:    strings.TrimSpace(reason),
	})
	if err != nil {
		return nil, err
	}
	return s.movement(ctx, id)
}

func (s *stockLedger) movement(ctx context.Context, id int64) (*StockMovement, error) {
	var m StockMovement
	err := s.pool.QueryRow(ctx, `
		SELECT m.id, m.product_id, p.name, m.quantity, m.movement_type, m.reference, m.reason, m.actor, m.created_at
		FROM stock_movements m
		JOIN products p ON p.id = m.product_id
		WHERE m.id = $1
	`, id).Scan(&m.ID, &m.ProductID, &m.ProductName, &m.Quantity, &m.Type,
		&m.Reference, &m.Reason, &m.Actor, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stock movement %d: %w", id, err)
	}
	return &m, nil
}

func (s *stockLedger) Compact(ctx context.Context, productID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Same lock as PostTx: no movement for this product is in flight while we sum.
	var locked int
	if err := tx.QueryRow(ctx, "SELECT id FROM products WHERE id = $1 FOR UPDATE", productID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("product %d", productID)
		}
		return fmt.Errorf("failed to lock product %d: %w", productID, err)
	}

	var qty decimal.Decimal
	var lastID int64
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0), COALESCE(MAX(id), 0)
		FROM stock_movements
		WHERE product_id = $1
	`, productID).Scan(&qty, &lastID); err != nil {
		return fmt.Errorf("failed to sum movements for product %d: %w", productID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stock_snapshots (product_id, quantity, last_movement_id, taken_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, last_movement_id = EXCLUDED.last_movement_id, taken_at = EXCLUDED.taken_at
	`, productID, qty, lastID); err != nil {
		return fmt.Errorf("failed to write snapshot for product %d: %w", productID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.cache.Invalidate(ctx, productID)
	return nil
}

func (s *stockLedger) CompactAll(ctx context.Context) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT m.product_id
		FROM stock_movements m
		LEFT JOIN stock_snapshots s ON s.product_id = m.product_id
		WHERE m.id > COALESCE(s.last_movement_id, 0)
		ORDER BY m.product_id
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find products to compact: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return 0, fmt.Errorf("failed to scan products to compact: %w", err)
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.Compact(ctx, id); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

func (s *stockLedger) InvalidateCache(ctx context.Context, productIDs ...int) {
	s.cache.Invalidate(ctx, productIDs...)
}
