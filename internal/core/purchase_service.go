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

// PurchaseLedger manages goods-in documents from suppliers and the payments made
// against them. Validation posts RECEPTION movements to the stock ledger.
type PurchaseLedger interface {
	// Create opens a DRAFT purchase with an ACHAT-YYYY-NNNNNN reference.
	Create(ctx context.Context, in PurchaseInput) (*Purchase, error)
	Get(ctx context.Context, id int) (*Purchase, error)
	List(ctx context.Context, f PurchaseFilter) (*Page[Purchase], error)

	// AddLine sets quantity and unit cost for a product on a DRAFT purchase.
	AddLine(ctx context.Context, id, productID int, qty, unitCost decimal.Decimal) (*Purchase, error)
	RemoveLine(ctx context.Context, id, productID int) (*Purchase, error)
	Validate(ctx context.Context, id int) (*Purchase, error)

	// RecordPayment appends a payment against a VALIDATED purchase. Payments beyond
	// the total are kept and reported as overpayment.
	RecordPayment(ctx context.Context, id int, amount decimal.Decimal, method PaymentMethod, paidOn time.Time, reference string) (*PurchasePayment, error)
	ListPayments(ctx context.Context, id int) ([]PurchasePayment, error)

	SupplierDebtSummary(ctx context.Context, supplierID int) (*SupplierDebt, error)
}

type purchaseLedger struct {
	pool  *pgxpool.Pool
	stock StockLedger
	audit AuditSink
}

func NewPurchaseLedger(pool *pgxpool.Pool, stock StockLedger, sink AuditSink) PurchaseLedger {
	return &purchaseLedger{pool: pool, stock: stock, audit: sink}
}

// purchaseSelect derives total and paid from lines and payments.
const purchaseSelect = `
	SELECT pu.id, pu.reference, pu.supplier_id, c.name, pu.purchased_on, pu.status, pu.notes,
	       pu.validated_at, pu.created_at,
	       COALESCE((SELECT SUM(ROUND(l.quantity * l.unit_cost, 2)) FROM purchase_lines l WHERE l.purchase_id = pu.id), 0),
	       COALESCE((SELECT SUM(pp.amount) FROM purchase_payments pp WHERE pp.purchase_id = pu.id), 0)
	FROM purchases pu
	JOIN clients c ON c.id = pu.supplier_id`

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var p Purchase
	if err := row.Scan(&p.ID, &p.Reference, &p.SupplierID, &p.SupplierName, &p.PurchasedOn, &p.Status,
		&p.Notes, &p.ValidatedAt, &p.CreatedAt, &p.Total, &p.Paid); err != nil {
		return nil, err
	}
	p.Balance = p.Total.Sub(p.Paid)
	p.PaymentState = DerivePaymentStatus(p.Total, p.Paid)
	return &p, nil
}

func (s *purchaseLedger) Create(ctx context.Context, in PurchaseInput) (*Purchase, error) {
	if in.SupplierID <= 0 {
		return nil, validationf("supplier is required")
	}
	if in.PurchasedOn.IsZero() {
		in.PurchasedOn = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getClient(ctx, tx, in.SupplierID); err != nil {
		return nil, err
	}

	ref, err := nextDocumentNumber(ctx, tx, KindPurchase, in.PurchasedOn)
	if err != nil {
		return nil, err
	}

	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO purchases (reference, supplier_id, purchased_on, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, ref, in.SupplierID, in.PurchasedOn, in.Notes).Scan(&id); err != nil {
		return nil, wrapPgError(err, "create purchase")
	}

	p, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase creation: %w", err)
	}
	audit(ctx, s.audit, "purchase.create", "purchase", id, "", nil, p)
	return p, nil
}

func (s *purchaseLedger) Get(ctx context.Context, id int) (*Purchase, error) {
	return s.load(ctx, s.pool, id)
}

func (s *purchaseLedger) load(ctx context.Context, q pgxQuerier, id int) (*Purchase, error) {
	p, err := scanPurchase(q.QueryRow(ctx, purchaseSelect+" WHERE pu.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("purchase %d", id)
		}
		return nil, fmt.Errorf("failed to fetch purchase %d: %w", id, err)
	}

	p.Lines, err = purchaseLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	p.Payments, err = purchasePayments(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// purchaseLines returns lines ordered by product id, the order validation locks products in.
func purchaseLines(ctx context.Context, q pgxQuerier, purchaseID int) ([]PurchaseLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.product_id, p.name, l.quantity, l.unit_cost, ROUND(l.quantity * l.unit_cost, 2)
		FROM purchase_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.purchase_id = $1
		ORDER BY l.product_id
	`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseLine, error) {
		var l PurchaseLine
		err := row.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitCost, &l.LineTotal)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase lines: %w", err)
	}
	return lines, nil
}

func purchasePayments(ctx context.Context, q pgxQuerier, purchaseID int) ([]PurchasePayment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, purchase_id, amount, method, paid_on, reference, created_at
		FROM purchase_payments
		WHERE purchase_id = $1
		ORDER BY paid_on, id
	`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase payments: %w", err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchasePayment, error) {
		var pp PurchasePayment
		err := row.Scan(&pp.ID, &pp.PurchaseID, &pp.Amount, &pp.Method, &pp.PaidOn, &pp.Reference, &pp.CreatedAt)
		return pp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase payments: %w", err)
	}
	return payments, nil
}

func (s *purchaseLedger) List(ctx context.Context, f PurchaseFilter) (*Page[Purchase], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if f.SupplierID > 0 {
		w.add("pu.supplier_id = ?", f.SupplierID)
	}
	if f.Status != "" {
		w.add("pu.status = ?", string(f.Status))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("(pu.reference ILIKE ? OR c.name ILIKE ?)", "%"+q+"%")
	}
	if f.From != nil {
		w.add("pu.purchased_on >= ?", *f.From)
	}
	if f.To != nil {
		w.add("pu.purchased_on <= ?", *f.To)
	}

	page := &Page[Purchase]{Page: p.Page, PageSize: p.PageSize}
	if err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM purchases pu JOIN clients c ON c.id = pu.supplier_id"+w.sql(), w.args...,
	).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count purchases: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	rows, err := s.pool.Query(ctx, purchaseSelect+where+" ORDER BY pu.purchased_on DESC, pu.id DESC"+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	page.Items = []Purchase{}
	for rows.Next() {
		pu, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		page.Items = append(page.Items, *pu)
	}
	return page, rows.Err()
}

// lockPurchase locks the purchase header and returns its reference and status.
func lockPurchase(ctx context.Context, tx pgx.Tx, id int) (string, PurchaseStatus, error) {
	var ref string
	var status PurchaseStatus
	err := tx.QueryRow(ctx, "SELECT reference, status FROM purchases WHERE id = $1 FOR UPDATE", id).Scan(&ref, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", notFoundf("purchase %d", id)
		}
		return "", "", fmt.Errorf("failed to lock purchase %d: %w", id, err)
	}
	return ref, status, nil
}

func (s *purchaseLedger) editDraft(ctx context.Context, id int, action string, fn func(tx pgx.Tx) error) (*Purchase, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref, status, err := lockPurchase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if status != PurchaseDraft {
		return nil, invalidStatef("cannot %s: purchase %s is %s (must be DRAFT)", action, ref, status)
	}
	before, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	after, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase change: %w", err)
	}
	audit(ctx, s.audit, "purchase.edit_lines", "purchase", id, "", before, after)
	return after, nil
}

func (s *purchaseLedger) AddLine(ctx context.Context, id, productID int, qty, unitCost decimal.Decimal) (*Purchase, error) {
	if !qty.IsPositive() {
		return nil, validationf("purchase quantity must be positive, got %s", qty)
	}
	if unitCost.IsNegative() {
		return nil, validationf("unit cost cannot be negative, got %s", unitCost)
	}
	return s.editDraft(ctx, id, "add line", func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO purchase_lines (purchase_id, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (purchase_id, product_id) DO UPDATE
			SET quantity = EXCLUDED.quantity, unit_cost = EXCLUDED.unit_cost
		`, id, productID, qty, unitCost); err != nil {
			return wrapPgError(err, "add purchase line")
		}
		return nil
	})
}

func (s *purchaseLedger) RemoveLine(ctx context.Context, id, productID int) (*Purchase, error) {
	return s.editDraft(ctx, id, "remove line", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM purchase_lines WHERE purchase_id = $1 AND product_id = $2", id, productID)
		if err != nil {
			return fmt.Errorf("failed to remove purchase line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("no line for product %d on purchase %d", productID, id)
		}
		return nil
	})
}

func (s *purchaseLedger) Validate(ctx context.Context, id int) (*Purchase, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref, status, err := lockPurchase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if status != PurchaseDraft {
		return nil, invalidStatef("purchase %s cannot be validated: status is %s (must be DRAFT)", ref, status)
	}

	lines, err := purchaseLines(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, validationf("purchase %s has no lines", ref)
	}

	touched := make([]int, 0, len(lines))
	for _, l := range lines {
		if _, err := s.stock.PostTx(ctx, tx, MovementInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Type:      MovementReception,
			Reference: ref,
			Reason:    "purchase reception",
		}); err != nil {
			return nil, fmt.Errorf("purchase %s: reception of %s failed: %w", ref, l.ProductName, err)
		}
		touched = append(touched, l.ProductID)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE purchases SET status = $1, validated_at = NOW() WHERE id = $2",
		string(PurchaseValidated), id,
	); err != nil {
		return nil, fmt.Errorf("failed to validate purchase %d: %w", id, err)
	}

	after, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase validation: %w", err)
	}

	s.stock.InvalidateCache(ctx, touched...)
	audit(ctx, s.audit, "purchase.validate", "purchase", id, "", PurchaseDraft, after)
	return after, nil
}

func (s *purchaseLedger) RecordPayment(ctx context.Context, id int, amount decimal.Decimal, method PaymentMethod,
	paidOn time.Time, reference string) (*PurchasePayment, error) {

	if !amount.IsPositive() {
		return nil, validationf("payment amount must be positive, got %s", amount)
	}
	if !method.Valid() {
		return nil, validationf("unknown payment method %q", method)
	}
	if paidOn.IsZero() {
		paidOn = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ref, status, err := lockPurchase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if status != PurchaseValidated {
		return nil, invalidStatef("purchase %s cannot be paid: status is %s (must be VALIDATED)", ref, status)
	}

	var pp PurchasePayment
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_payments (purchase_id, amount, method, paid_on, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, purchase_id, amount, method, paid_on, reference, created_at
	`, id, amount, string(method), paidOn, reference).Scan(
		&pp.ID, &pp.PurchaseID, &pp.Amount, &pp.Method, &pp.PaidOn, &pp.Reference, &pp.CreatedAt)
	if err != nil {
		return nil, wrapPgError(err, "record purchase payment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit purchase payment: %w", err)
	}
	audit(ctx, s.audit, "purchase.payment", "purchase", id, "", nil, pp)
	return &pp, nil
}

func (s *purchaseLedger) ListPayments(ctx context.Context, id int) ([]PurchasePayment, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM purchases WHERE id = $1)", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check purchase %d: %w", id, err)
	}
	if !exists {
		return nil, notFoundf("purchase %d", id)
	}
	return purchasePayments(ctx, s.pool, id)
}

func (s *purchaseLedger) SupplierDebtSummary(ctx context.Context, supplierID int) (*SupplierDebt, error) {
	if _, err := getClient(ctx, s.pool, supplierID); err != nil {
		return nil, err
	}
	balances, err := purchaseBalances(ctx, s.pool, supplierID)
	if err != nil {
		return nil, err
	}

	debt := &SupplierDebt{SupplierID: supplierID, PurchaseCount: len(balances)}
	for _, b := range balances {
		debt.TotalPurchased = debt.TotalPurchased.Add(b.total)
		debt.TotalPaid = debt.TotalPaid.Add(b.paid)
		bal := b.total.Sub(b.paid)
		if bal.IsPositive() {
			debt.Outstanding = debt.Outstanding.Add(bal)
		} else {
			debt.Overpaid = debt.Overpaid.Add(bal.Neg())
		}
	}
	return debt, nil
}

type purchaseBalance struct {
	id    int
	total decimal.Decimal
	paid  decimal.Decimal
}

// purchaseBalances returns total and paid for every validated purchase of a supplier.
func purchaseBalances(ctx context.Context, q pgxQuerier, supplierID int) ([]purchaseBalance, error) {
	rows, err := q.Query(ctx, `
		SELECT pu.id,
		       COALESCE((SELECT SUM(ROUND(l.quantity * l.unit_cost, 2)) FROM purchase_lines l WHERE l.purchase_id = pu.id), 0),
		       COALESCE((SELECT SUM(pp.amount) FROM purchase_payments pp WHERE pp.purchase_id = pu.id), 0)
		FROM purchases pu
		WHERE pu.supplier_id = $1 AND pu.status = 'VALIDATED'
		ORDER BY pu.id
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase balances: %w", err)
	}
	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (purchaseBalance, error) {
		var b purchaseBalance
		err := row.Scan(&b.id, &b.total, &b.paid)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan purchase balances: %w", err)
	}
	return balances, nil
}
