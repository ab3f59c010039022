package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// InvoiceEngine drives the invoice lifecycle: DRAFT → VALIDATED ⇄ CONTESTED, or
// DRAFT → CANCELLED. Validation is the only step that touches stock.
type InvoiceEngine interface {
	// Create opens a DRAFT invoice numbered GSA-YYYY-NNNNNN.
	Create(ctx context.Context, in InvoiceInput) (*Invoice, error)
	Get(ctx context.Context, id int) (*Invoice, error)
	List(ctx context.Context, f InvoiceFilter) (*Page[Invoice], error)

	// AddLine freezes the resolved client price on a new line. The soft stock check
	// counts the product's quantity already on this invoice.
	AddLine(ctx context.Context, id, productID int, qty decimal.Decimal) (*Invoice, error)
	UpdateLineQty(ctx context.Context, id, lineID int, qty decimal.Decimal) (*Invoice, error)
	RemoveLine(ctx context.Context, id, lineID int) (*Invoice, error)
	ToggleTaxIncluded(ctx context.Context, id int) (*Invoice, error)

	// Validate posts one SALE per line and freezes tax rates, atomically. On any
	// failure the invoice stays DRAFT with its lines.
	Validate(ctx context.Context, id int) (*Invoice, error)
	Cancel(ctx context.Context, id int) (*Invoice, error)

	IssueAcceptanceToken(ctx context.Context, id int) (*AcceptanceToken, error)
	// AcceptanceSummary shows the invoice behind a token without consuming it.
	AcceptanceSummary(ctx context.Context, rawToken string) (*Invoice, error)
	// AcceptViaToken consumes a token once. The invoice status is unchanged.
	AcceptViaToken(ctx context.Context, rawToken, acceptedBy string) (*Acceptance, error)

	Contest(ctx context.Context, id int, in ContestInput) (*Invoice, error)
	// ContestViaToken is the client-side dispute behind an acceptance link. The
	// token may already be used but must not be expired.
	ContestViaToken(ctx context.Context, rawToken string, in ContestInput) (*Invoice, error)
	ResolveContestation(ctx context.Context, id int, resolution string) (*Invoice, error)
	PostponeReminder(ctx context.Context, id int, date time.Time) (*Invoice, error)
	// DueReminders lists collectible invoices with a reminder on or before asOf
	// and an outstanding balance.
	DueReminders(ctx context.Context, asOf time.Time) ([]Invoice, error)
}

type ContestInput struct {
	Reason string
	Name   string
	Email  string
}

type invoiceEngine struct {
	pool    *pgxpool.Pool
	stock   StockLedger
	pricing PricingResolver
	opts    InvoiceOptions
	audit   AuditSink
	now     func() time.Time
}

func NewInvoiceEngine(pool *pgxpool.Pool, stock StockLedger, pricing PricingResolver, opts InvoiceOptions, sink AuditSink) InvoiceEngine {
	return &invoiceEngine{
		pool:    pool,
		stock:   stock,
		pricing: pricing,
		opts:    opts.withDefaults(),
		audit:   sink,
		now:     time.Now,
	}
}

// ── Reads ───────────────────────────────────────────────────────────────────

const invoiceSelect = `
	SELECT i.id, i.number, i.client_id, c.name, i.invoice_type, i.status, i.tax_included, i.issued_on,
	       i.validated_at, i.cancelled_at, i.reminder_date,
	       i.contest_reason, i.contest_name, i.contest_email, i.contested_at,
	       i.contest_resolved_at, i.contest_resolution, i.created_at,
	       COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)
	FROM invoices i
	JOIN clients c ON c.id = i.client_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var reason, name, email, resolution *string
	var contestedAt, resolvedAt *time.Time
	if err := row.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.Type, &inv.Status,
		&inv.TaxIncluded, &inv.IssuedOn, &inv.ValidatedAt, &inv.CancelledAt, &inv.ReminderDate,
		&reason, &name, &email, &contestedAt, &resolvedAt, &resolution, &inv.CreatedAt, &inv.Paid); err != nil {
		return nil, err
	}
	if contestedAt != nil {
		inv.Contestation = &Contestation{
			Reason:     deref(reason),
			Name:       deref(name),
			Email:      deref(email),
			At:         *contestedAt,
			ResolvedAt: resolvedAt,
			Resolution: deref(resolution),
		}
	}
	inv.Lines = []InvoiceLine{}
	return &inv, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (e *invoiceEngine) Get(ctx context.Context, id int) (*Invoice, error) {
	inv, err := loadInvoice(ctx, e.pool, id, e.opts.TaxRates)
	if err != nil {
		return nil, err
	}
	inv.Acceptance, err = latestAcceptance(ctx, e.pool, inv)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// loadInvoice reads one invoice with its lines and computed totals.
func loadInvoice(ctx context.Context, q pgxQuerier, id int, rates TaxRates) (*Invoice, error) {
	inv, err := scanInvoice(q.QueryRow(ctx, invoiceSelect+" WHERE i.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("invoice %d", id)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", id, err)
	}
	if err := attachLines(ctx, q, []*Invoice{inv}, rates); err != nil {
		return nil, err
	}
	return inv, nil
}

// attachLines loads the lines of every invoice in one query and computes totals.
func attachLines(ctx context.Context, q pgxQuerier, invoices []*Invoice, rates TaxRates) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[int]*Invoice, len(invoices))
	ids := make([]int, 0, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
	}

	rows, err := q.Query(ctx, `
		SELECT l.invoice_id, l.id, l.product_id, p.name, p.category, l.quantity, l.unit_price, l.tax_rate
		FROM invoice_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.invoice_id = ANY($1)
		ORDER BY l.invoice_id, l.id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID int
		var l InvoiceLine
		if err := rows.Scan(&invoiceID, &l.ID, &l.ProductID, &l.ProductName, &l.Category,
			&l.Quantity, &l.UnitPrice, &l.TaxRate); err != nil {
			return fmt.Errorf("failed to scan invoice line: %w", err)
		}
		l.LineTotal = LineTotal(l.Quantity, l.UnitPrice)
		byID[invoiceID].Lines = append(byID[invoiceID].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read invoice lines: %w", err)
	}

	for _, inv := range invoices {
		inv.computeTotals(rates)
	}
	return nil
}

func latestAcceptance(ctx context.Context, q pgxQuerier, inv *Invoice) (*Acceptance, error) {
	a := Acceptance{InvoiceID: inv.ID, Number: inv.Number}
	var by *string
	err := q.QueryRow(ctx, `
		SELECT accepted_by, used_at
		FROM acceptance_tokens
		WHERE invoice_id = $1 AND used_at IS NOT NULL
		ORDER BY used_at DESC
		LIMIT 1
	`, inv.ID).Scan(&by, &a.AcceptedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch acceptance for invoice %d: %w", inv.ID, err)
	}
	a.AcceptedBy = deref(by)
	return &a, nil
}

func (e *invoiceEngine) List(ctx context.Context, f InvoiceFilter) (*Page[Invoice], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if f.ClientID > 0 {
		w.add("i.client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		w.add("i.status = ?", string(f.Status))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("(i.number ILIKE ? OR c.name ILIKE ?)", "%"+q+"%")
	}
	if f.From != nil {
		w.add("i.issued_on >= ?", *f.From)
	}
	if f.To != nil {
		w.add("i.issued_on <= ?", *f.To)
	}

	page := &Page[Invoice]{Page: p.Page, PageSize: p.PageSize}
	if err := e.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM invoices i JOIN clients c ON c.id = i.client_id"+w.sql(), w.args...,
	).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count invoices: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	invoices, err := queryInvoices(ctx, e.pool, invoiceSelect+where+" ORDER BY i.issued_on DESC, i.id DESC"+limit, args...)
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, e.pool, invoices, e.opts.TaxRates); err != nil {
		return nil, err
	}

	page.Items = make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		page.Items = append(page.Items, *inv)
	}
	return page, nil
}

func queryInvoices(ctx context.Context, q pgxQuerier, sql string, args ...any) ([]*Invoice, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (e *invoiceEngine) DueReminders(ctx context.Context, asOf time.Time) ([]Invoice, error) {
	invoices, err := queryInvoices(ctx, e.pool,
		invoiceSelect+" WHERE i.status IN ('VALIDATED', 'CONTESTED') AND i.reminder_date <= $1 ORDER BY i.reminder_date, i.id",
		asOf)
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, e.pool, invoices, e.opts.TaxRates); err != nil {
		return nil, err
	}

	due := []Invoice{}
	for _, inv := range invoices {
		if inv.Balance.IsPositive() {
			due = append(due, *inv)
		}
	}
	return due, nil
}

// ── Creation and draft editing ──────────────────────────────────────────────

func (e *invoiceEngine) Create(ctx context.Context, in InvoiceInput) (*Invoice, error) {
	if in.ClientID <= 0 {
		return nil, validationf("client is required")
	}
	if in.Type == "" {
		in.Type = InvoiceDelivery
	}
	if !in.Type.Valid() {
		return nil, validationf("invalid invoice type %q", in.Type)
	}
	if in.IssuedOn.IsZero() {
		in.IssuedOn = e.now()
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	client, err := getClient(ctx, tx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, validationf("client %s is inactive", client.Name)
	}

	number, err := nextDocumentNumber(ctx, tx, KindInvoice, in.IssuedOn)
	if err != nil {
		return nil, err
	}

	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO invoices (number, client_id, invoice_type, issued_on)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, number, in.ClientID, string(in.Type), in.IssuedOn).Scan(&id); err != nil {
		return nil, wrapPgError(err, "create invoice")
	}

	inv, err := loadInvoice(ctx, tx, id, e.opts.TaxRates)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}
	audit(ctx, e.audit, "invoice.create", "invoice", id, "", nil, inv)
	return inv, nil
}

type invoiceHeader struct {
	number   string
	clientID int
	status   InvoiceStatus
}

func lockInvoice(ctx context.Context, tx pgx.Tx, id int) (invoiceHeader, error) {
	var h invoiceHeader
	err := tx.QueryRow(ctx,
		"SELECT number, client_id, status FROM invoices WHERE id = $1 FOR UPDATE", id,
	).Scan(&h.number, &h.clientID, &h.status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return h, notFoundf("invoice %d", id)
		}
		return h, fmt.Errorf("failed to lock invoice %d: %w", id, err)
	}
	return h, nil
}

// transition locks the invoice, checks its status against allowed, runs fn and
// returns the reloaded invoice. The audit record carries before and after.
func (e *invoiceEngine) transition(ctx context.Context, id int, action, reason string, allowed []InvoiceStatus,
	fn func(tx pgx.Tx, h invoiceHeader) error) (*Invoice, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	h, err := lockInvoice(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !statusIn(h.status, allowed) {
		return nil, invalidStatef("cannot %s invoice %s: status is %s (must be %s)",
			action, h.number, h.status, joinStatuses(allowed))
	}

	before, err := loadInvoice(ctx, tx, id, e.opts.TaxRates)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, h); err != nil {
		return nil, err
	}
	after, err := loadInvoice(ctx, tx, id, e.opts.TaxRates)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice %s: %w", action, err)
	}
	audit(ctx, e.audit, "invoice."+strings.ReplaceAll(action, " ", "_"), "invoice", id, reason, before, after)
	return after, nil
}

func statusIn(s InvoiceStatus, allowed []InvoiceStatus) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func joinStatuses(ss []InvoiceStatus) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, " or ")
}

var draftOnly = []InvoiceStatus{InvoiceDraft}

// checkAvailable is the advisory stock check made while editing a draft. It does
// not lock; the authoritative guard runs at validation.
func checkAvailable(ctx context.Context, tx pgx.Tx, invoiceID, productID, excludeLineID int, qty decimal.Decimal) error {
	var name string
	var onInvoice decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT p.name, COALESCE((
			SELECT SUM(l.quantity) FROM invoice_lines l
			WHERE l.invoice_id = $1 AND l.product_id = p.id AND l.id <> $3
		), 0)
		FROM products p
		WHERE p.id = $2
	`, invoiceID, productID, excludeLineID).Scan(&name, &onInvoice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFoundf("product %d", productID)
		}
		return fmt.Errorf("failed to read invoice quantity for product %d: %w", productID, err)
	}

	available, err := balanceOf(ctx, tx, productID)
	if err != nil {
		return err
	}
	requested := onInvoice.Add(qty)
	if requested.GreaterThan(available) {
		return &InsufficientStockError{ProductID: productID, ProductName: name, Available: available, Requested: requested}
	}
	return nil
}

func (e *invoiceEngine) AddLine(ctx context.Context, id, productID int, qty decimal.Decimal) (*Invoice, error) {
	if !qty.IsPositive() {
		return nil, validationf("quantity must be positive, got %s", qty)
	}
	return e.transition(ctx, id, "add line", "", draftOnly, func(tx pgx.Tx, h invoiceHeader) error {
		product, err := getProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return validationf("product %s is inactive", product.Name)
		}

		price, err := e.pricing.ResolveTx(ctx, tx, h.clientID, productID)
		if err != nil {
			return err
		}
		if err := checkAvailable(ctx, tx, id, productID, 0, qty); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"INSERT INTO invoice_lines (invoice_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			id, productID, qty, price,
		); err != nil {
			return wrapPgError(err, "add invoice line")
		}
		return nil
	})
}

func lineProduct(ctx context.Context, tx pgx.Tx, invoiceID, lineID int) (int, error) {
	var productID int
	err := tx.QueryRow(ctx,
		"SELECT product_id FROM invoice_lines WHERE id = $1 AND invoice_id = $2", lineID, invoiceID,
	).Scan(&productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFoundf("line %d on invoice %d", lineID, invoiceID)
		}
		return 0, fmt.Errorf("failed to fetch invoice line %d: %w", lineID, err)
	}
	return productID, nil
}

func (e *invoiceEngine) UpdateLineQty(ctx context.Context, id, lineID int, qty decimal.Decimal) (*Invoice, error) {
	if !qty.IsPositive() {
		return nil, validationf("quantity must be positive, got %s", qty)
	}
	return e.transition(ctx, id, "update line", "", draftOnly, func(tx pgx.Tx, _ invoiceHeader) error {
		productID, err := lineProduct(ctx, tx, id, lineID)
		if err != nil {
			return err
		}
		if err := checkAvailable(ctx, tx, id, productID, lineID, qty); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "UPDATE invoice_lines SET quantity = $1 WHERE id = $2", qty, lineID); err != nil {
			return wrapPgError(err, "update invoice line")
		}
		return nil
	})
}

func (e *invoiceEngine) RemoveLine(ctx context.Context, id, lineID int) (*Invoice, error) {
	return e.transition(ctx, id, "remove line", "", draftOnly, func(tx pgx.Tx, _ invoiceHeader) error {
		tag, err := tx.Exec(ctx, "DELETE FROM invoice_lines WHERE id = $1 AND invoice_id = $2", lineID, id)
		if err != nil {
			return fmt.Errorf("failed to remove invoice line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("line %d on invoice %d", lineID, id)
		}
		return nil
	})
}

func (e *invoiceEngine) ToggleTaxIncluded(ctx context.Context, id int) (*Invoice, error) {
	return e.transition(ctx, id, "toggle tax", "", draftOnly, func(tx pgx.Tx, _ invoiceHeader) error {
		if _, err := tx.Exec(ctx, "UPDATE invoices SET tax_included = NOT tax_included WHERE id = $1", id); err != nil {
			return fmt.Errorf("failed to toggle tax on invoice %d: %w", id, err)
		}
		return nil
	})
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (e *invoiceEngine) Validate(ctx context.Context, id int) (*Invoice, error) {
	var touched []int
	inv, err := e.transition(ctx, id, "validate", "", draftOnly, func(tx pgx.Tx, h invoiceHeader) error {
		inv, err := loadInvoice(ctx, tx, id, e.opts.TaxRates)
		if err != nil {
			return err
		}
		if len(inv.Lines) == 0 {
			return validationf("invoice %s has no lines", h.number)
		}

		// Product id order keeps concurrent validations from deadlocking on row locks.
		lines := append([]InvoiceLine(nil), inv.Lines...)
		sort.SliceStable(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		for _, l := range lines {
			if _, err := e.stock.PostTx(ctx, tx, MovementInput{
				ProductID: l.ProductID,
				Quantity:  l.Quantity.Neg(),
				Type:      MovementSale,
				Reference: h.number,
			}); err != nil {
				return err
			}
			if len(touched) == 0 || touched[len(touched)-1] != l.ProductID {
				touched = append(touched, l.ProductID)
			}
		}

		for category, rate := range e.opts.TaxRates {
			if _, err := tx.Exec(ctx, `
				UPDATE invoice_lines l SET tax_rate = $1
				FROM products p
				WHERE p.id = l.product_id AND l.invoice_id = $2 AND p.category = $3
			`, rate, id, string(category)); err != nil {
				return fmt.Errorf("failed to freeze tax rates on invoice %s: %w", h.number, err)
			}
		}
		if _, err := tx.Exec(ctx,
			"UPDATE invoice_lines SET tax_rate = 0 WHERE invoice_id = $1 AND tax_rate IS NULL", id,
		); err != nil {
			return fmt.Errorf("failed to freeze tax rates on invoice %s: %w", h.number, err)
		}

		validatedAt := e.now()
		reminder := validatedAt.AddDate(0, 0, e.opts.ReminderDays)
		if _, err := tx.Exec(ctx,
			"UPDATE invoices SET status = $1, validated_at = $2, reminder_date = $3 WHERE id = $4",
			string(InvoiceValidated), validatedAt, reminder, id,
		); err != nil {
			return fmt.Errorf("failed to validate invoice %s: %w", h.number, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.stock.InvalidateCache(ctx, touched...)
	return inv, nil
}

func (e *invoiceEngine) Cancel(ctx context.Context, id int) (*Invoice, error) {
	return e.transition(ctx, id, "cancel", "", draftOnly, func(tx pgx.Tx, _ invoiceHeader) error {
		if _, err := tx.Exec(ctx,
			"UPDATE invoices SET status = $1, cancelled_at = NOW() WHERE id = $2",
			string(InvoiceCancelled), id,
		); err != nil {
			return fmt.Errorf("failed to cancel invoice %d: %w", id, err)
		}
		return nil
	})
}

func (e *invoiceEngine) Contest(ctx context.Context, id int, in ContestInput) (*Invoice, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	if in.Reason == "" {
		return nil, validationf("contestation reason is required")
	}
	allowed := []InvoiceStatus{InvoiceValidated}
	return e.transition(ctx, id, "contest", in.Reason, allowed, func(tx pgx.Tx, _ invoiceHeader) error {
		if _, err := tx.Exec(ctx, `
			UPDATE invoices
			SET status = $1, contest_reason = $2, contest_name = $3, contest_email = $4,
			    contested_at = NOW(), contest_resolved_at = NULL, contest_resolution = NULL
			WHERE id = $5
		`, string(InvoiceContested), in.Reason, strings.TrimSpace(in.Name), strings.TrimSpace(in.Email), id); err != nil {
			return fmt.Errorf("failed to contest invoice %d: %w", id, err)
		}
		return nil
	})
}

func (e *invoiceEngine) ResolveContestation(ctx context.Context, id int, resolution string) (*Invoice, error) {
	allowed := []InvoiceStatus{InvoiceContested}
	return e.transition(ctx, id, "resolve contestation", resolution, allowed, func(tx pgx.Tx, _ invoiceHeader) error {
		if _, err := tx.Exec(ctx, `
			UPDATE invoices
			SET status = $1, contest_resolved_at = NOW(), contest_resolution = $2
			WHERE id = $3
		`, string(InvoiceValidated), strings.TrimSpace(resolution), id); err != nil {
			return fmt.Errorf("failed to resolve contestation on invoice %d: %w", id, err)
		}
		return nil
	})
}

func (e *invoiceEngine) PostponeReminder(ctx context.Context, id int, date time.Time) (*Invoice, error) {
	if date.IsZero() {
		return nil, validationf("reminder date is required")
	}
	allowed := []InvoiceStatus{InvoiceValidated, InvoiceContested}
	return e.transition(ctx, id, "postpone reminder", "", allowed, func(tx pgx.Tx, _ invoiceHeader) error {
		if _, err := tx.Exec(ctx, "UPDATE invoices SET reminder_date = $1 WHERE id = $2", date, id); err != nil {
			return fmt.Errorf("failed to postpone reminder on invoice %d: %w", id, err)
		}
		return nil
	})
}

// ── Acceptance tokens ───────────────────────────────────────────────────────

func (e *invoiceEngine) IssueAcceptanceToken(ctx context.Context, id int) (*AcceptanceToken, error) {
	raw, hash, err := newAcceptanceToken()
	if err != nil {
		return nil, err
	}
	tok := &AcceptanceToken{InvoiceID: id, Token: raw}

	allowed := []InvoiceStatus{InvoiceValidated}
	_, err = e.transition(ctx, id, "issue acceptance token", "", allowed, func(tx pgx.Tx, _ invoiceHeader) error {
		issuedAt := e.now()
		tok.ExpiresAt = issuedAt.Add(e.opts.TokenTTL)
		if _, err := tx.Exec(ctx,
			"INSERT INTO acceptance_tokens (invoice_id, token_hash, issued_at, expires_at) VALUES ($1, $2, $3, $4)",
			id, hash, issuedAt, tok.ExpiresAt,
		); err != nil {
			return wrapPgError(err, "store acceptance token")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

type tokenRow struct {
	id        int
	invoiceID int
	expiresAt time.Time
	usedAt    *time.Time
}

func findToken(ctx context.Context, q pgxQuerier, rawToken string, lock bool) (*tokenRow, error) {
	if rawToken == "" {
		return nil, notFoundf("acceptance token")
	}
	sql := "SELECT id, invoice_id, expires_at, used_at FROM acceptance_tokens WHERE token_hash = $1"
	if lock {
		sql += " FOR UPDATE"
	}
	var t tokenRow
	if err := q.QueryRow(ctx, sql, hashToken(rawToken)).Scan(&t.id, &t.invoiceID, &t.expiresAt, &t.usedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("acceptance token")
		}
		return nil, fmt.Errorf("failed to look up acceptance token: %w", err)
	}
	return &t, nil
}

// check reports a used token before an expired one.
func (t *tokenRow) check(now time.Time) error {
	if t.usedAt != nil {
		return fmt.Errorf("%w: used at %s", ErrTokenAlreadyUsed, t.usedAt.Format(time.RFC3339))
	}
	if now.After(t.expiresAt) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, t.expiresAt.Format(time.RFC3339))
	}
	return nil
}

func (e *invoiceEngine) AcceptanceSummary(ctx context.Context, rawToken string) (*Invoice, error) {
	t, err := findToken(ctx, e.pool, rawToken, false)
	if err != nil {
		return nil, err
	}
	if e.now().After(t.expiresAt) && t.usedAt == nil {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, t.expiresAt.Format(time.RFC3339))
	}
	return e.Get(ctx, t.invoiceID)
}

// tokenActor is recorded for mutations made through a public acceptance link.
const tokenActor = "acceptance-link"

func (e *invoiceEngine) ContestViaToken(ctx context.Context, rawToken string, in ContestInput) (*Invoice, error) {
	t, err := findToken(ctx, e.pool, rawToken, false)
	if err != nil {
		return nil, err
	}
	if e.now().After(t.expiresAt) {
		return nil, fmt.Errorf("%w: expired at %s", ErrTokenExpired, t.expiresAt.Format(time.RFC3339))
	}
	return e.Contest(WithActor(ctx, tokenActor), t.invoiceID, in)
}

func (e *invoiceEngine) AcceptViaToken(ctx context.Context, rawToken, acceptedBy string) (*Acceptance, error) {
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := findToken(ctx, tx, rawToken, true)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := t.check(now); err != nil {
		return nil, err
	}

	acceptedBy = strings.TrimSpace(acceptedBy)
	tag, err := tx.Exec(ctx,
		"UPDATE acceptance_tokens SET used_at = $1, accepted_by = $2 WHERE id = $3 AND used_at IS NULL",
		now, acceptedBy, t.id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume acceptance token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: accepted concurrently", ErrTokenAlreadyUsed)
	}

	var number string
	if err := tx.QueryRow(ctx, "SELECT number FROM invoices WHERE id = $1", t.invoiceID).Scan(&number); err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", t.invoiceID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit acceptance: %w", err)
	}
	a := &Acceptance{InvoiceID: t.invoiceID, Number: number, AcceptedBy: acceptedBy, AcceptedAt: now}
	audit(WithActor(ctx, tokenActor), e.audit, "invoice.accept", "invoice", t.invoiceID, "accepted by "+acceptedBy, nil, a)
	return a, nil
}
