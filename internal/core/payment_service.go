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

// PaymentAggregator records money movements with clients and derives balances
// from them. Nothing here is cached: every balance is recomputed from payments,
// invoice lines, credit notes and purchases.
type PaymentAggregator interface {
	RecordPayment(ctx context.Context, invoiceID int, in PaymentInput) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID int) ([]Payment, error)
	InvoiceBalance(ctx context.Context, invoiceID int) (*InvoiceBalance, error)

	IssueCreditNote(ctx context.Context, in CreditNoteInput) (*CreditNote, error)
	// CreditNoteFromInvoice issues a credit note for the full total of an invoice.
	CreditNoteFromInvoice(ctx context.Context, invoiceID int, reason string) (*CreditNote, error)
	RefundCreditNote(ctx context.Context, creditNoteID int, in RefundInput) (*CreditNote, error)
	ListCreditNotes(ctx context.Context, clientID int) ([]CreditNote, error)

	// ClientTotalDue sums the positive balances of VALIDATED and CONTESTED invoices.
	ClientTotalDue(ctx context.Context, clientID int) (decimal.Decimal, error)
	ClientTotalOwed(ctx context.Context, clientID int) (*OwedBreakdown, error)
	ClientStatement(ctx context.Context, clientID int) (*ClientStatement, error)
	// Receivables lists clients with a positive due, largest first.
	Receivables(ctx context.Context) ([]Receivable, error)
	// DuesAt is Receivables as it stood at the end of the given day.
	DuesAt(ctx context.Context, at time.Time) ([]Receivable, error)

	SalesSummary(ctx context.Context, q SalesQuery) (*SalesSummary, error)
	// TopProducts ranks products by quantity sold on VALIDATED and CONTESTED invoices.
	TopProducts(ctx context.Context, q TopProductsQuery) ([]ProductSales, error)
}

type paymentAggregator struct {
	pool  *pgxpool.Pool
	rates TaxRates
	audit AuditSink
}

func NewPaymentAggregator(pool *pgxpool.Pool, rates TaxRates, sink AuditSink) PaymentAggregator {
	if rates == nil {
		rates = DefaultTaxRates()
	}
	return &paymentAggregator{pool: pool, rates: rates, audit: sink}
}

// ── Invoice payments ────────────────────────────────────────────────────────

func (a *paymentAggregator) RecordPayment(ctx context.Context, invoiceID int, in PaymentInput) (*Payment, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.PaidOn.IsZero() {
		in.PaidOn = time.Now()
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	h, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !h.status.collectible() {
		return nil, invalidStatef("invoice %s cannot receive payments: status is %s", h.number, h.status)
	}

	var p Payment
	err = tx.QueryRow(ctx, `
		INSERT INTO payments (invoice_id, amount, method, paid_on, reference, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, invoice_id, amount, method, paid_on, reference, actor, created_at
	`, invoiceID, in.Amount, string(in.Method), in.PaidOn, strings.TrimSpace(in.Reference), ActorFrom(ctx)).Scan(
		&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidOn, &p.Reference, &p.Actor, &p.CreatedAt)
	if err != nil {
		return nil, wrapPgError(err, "record payment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	audit(ctx, a.audit, "invoice.payment", "invoice", invoiceID, "", nil, p)
	return &p, nil
}

func (a *paymentAggregator) ListPayments(ctx context.Context, invoiceID int) ([]Payment, error) {
	var exists bool
	if err := a.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1)", invoiceID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check invoice %d: %w", invoiceID, err)
	}
	if !exists {
		return nil, notFoundf("invoice %d", invoiceID)
	}

	rows, err := a.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, paid_on, reference, actor, created_at
		FROM payments
		WHERE invoice_id = $1
		ORDER BY paid_on, id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var p Payment
		err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.PaidOn, &p.Reference, &p.Actor, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan payments: %w", err)
	}
	return payments, nil
}

func (a *paymentAggregator) InvoiceBalance(ctx context.Context, invoiceID int) (*InvoiceBalance, error) {
	inv, err := loadInvoice(ctx, a.pool, invoiceID, a.rates)
	if err != nil {
		return nil, err
	}
	b := balanceOfInvoice(inv)
	return &b, nil
}

// ── Credit notes ────────────────────────────────────────────────────────────

const creditNoteSelect = `
	SELECT cn.id, cn.client_id, cn.origin_invoice_id, cn.amount,
	       COALESCE((SELECT SUM(r.amount) FROM credit_note_refunds r WHERE r.credit_note_id = cn.id), 0),
	       cn.reason, cn.created_at
	FROM credit_notes cn`

func scanCreditNote(row pgx.Row) (*CreditNote, error) {
	var cn CreditNote
	if err := row.Scan(&cn.ID, &cn.ClientID, &cn.OriginInvoiceID, &cn.Amount, &cn.Refunded, &cn.Reason, &cn.CreatedAt); err != nil {
		return nil, err
	}
	cn.Outstanding = cn.Amount.Sub(cn.Refunded)
	return &cn, nil
}

func loadCreditNote(ctx context.Context, q pgxQuerier, id int) (*CreditNote, error) {
	cn, err := scanCreditNote(q.QueryRow(ctx, creditNoteSelect+" WHERE cn.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("credit note %d", id)
		}
		return nil, fmt.Errorf("failed to fetch credit note %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, credit_note_id, amount, method, refunded_on, created_at
		FROM credit_note_refunds
		WHERE credit_note_id = $1
		ORDER BY refunded_on, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query refunds: %w", err)
	}
	cn.Refunds, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (CreditNoteRefund, error) {
		var r CreditNoteRefund
		err := row.Scan(&r.ID, &r.CreditNoteID, &r.Amount, &r.Method, &r.RefundedOn, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan refunds: %w", err)
	}
	return cn, nil
}

func (a *paymentAggregator) IssueCreditNote(ctx context.Context, in CreditNoteInput) (*CreditNote, error) {
	if in.ClientID <= 0 {
		return nil, validationf("client is required")
	}
	if !in.Amount.IsPositive() {
		return nil, validationf("credit note amount must be positive, got %s", in.Amount)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := getClient(ctx, tx, in.ClientID); err != nil {
		return nil, err
	}
	if in.OriginInvoiceID != nil {
		h, err := lockInvoice(ctx, tx, *in.OriginInvoiceID)
		if err != nil {
			return nil, err
		}
		if h.clientID != in.ClientID {
			return nil, validationf("invoice %s does not belong to client %d", h.number, in.ClientID)
		}
		if !h.status.collectible() {
			return nil, invalidStatef("cannot credit invoice %s: status is %s", h.number, h.status)
		}
	}

	cn, err := a.insertCreditNote(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit note: %w", err)
	}
	audit(ctx, a.audit, "credit_note.issue", "credit_note", cn.ID, in.Reason, nil, cn)
	return cn, nil
}

func (a *paymentAggregator) insertCreditNote(ctx context.Context, tx pgx.Tx, in CreditNoteInput) (*CreditNote, error) {
	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO credit_notes (client_id, origin_invoice_id, amount, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, in.ClientID, in.OriginInvoiceID, in.Amount, strings.TrimSpace(in.Reason)).Scan(&id); err != nil {
		return nil, wrapPgError(err, "issue credit note")
	}
	return loadCreditNote(ctx, tx, id)
}

func (a *paymentAggregator) CreditNoteFromInvoice(ctx context.Context, invoiceID int, reason string) (*CreditNote, error) {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	h, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !h.status.collectible() {
		return nil, invalidStatef("cannot credit invoice %s: status is %s", h.number, h.status)
	}
	inv, err := loadInvoice(ctx, tx, invoiceID, a.rates)
	if err != nil {
		return nil, err
	}
	if !inv.Totals.Total.IsPositive() {
		return nil, validationf("invoice %s has a zero total", h.number)
	}

	if strings.TrimSpace(reason) == "" {
		reason = "credit note for invoice " + h.number
	}
	cn, err := a.insertCreditNote(ctx, tx, CreditNoteInput{
		ClientID:        h.clientID,
		Amount:          inv.Totals.Total,
		OriginInvoiceID: &invoiceID,
		Reason:          reason,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit credit note: %w", err)
	}
	audit(ctx, a.audit, "credit_note.issue", "credit_note", cn.ID, reason, nil, cn)
	return cn, nil
}

func (a *paymentAggregator) RefundCreditNote(ctx context.Context, creditNoteID int, in RefundInput) (*CreditNote, error) {
	if !in.Amount.IsPositive() {
		return nil, validationf("refund amount must be positive, got %s", in.Amount)
	}
	if !in.Method.Valid() {
		return nil, validationf("invalid refund method %q", in.Method)
	}
	if in.RefundedOn.IsZero() {
		in.RefundedOn = time.Now()
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int
	if err := tx.QueryRow(ctx, "SELECT id FROM credit_notes WHERE id = $1 FOR UPDATE", creditNoteID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("credit note %d", creditNoteID)
		}
		return nil, fmt.Errorf("failed to lock credit note %d: %w", creditNoteID, err)
	}
	before, err := loadCreditNote(ctx, tx, creditNoteID)
	if err != nil {
		return nil, err
	}
	if in.Amount.GreaterThan(before.Outstanding) {
		return nil, validationf("refund of %s exceeds outstanding credit %s", in.Amount, before.Outstanding)
	}

	if _, err := tx.Exec(ctx,
		"INSERT INTO credit_note_refunds (credit_note_id, amount, method, refunded_on) VALUES ($1, $2, $3, $4)",
		creditNoteID, in.Amount, string(in.Method), in.RefundedOn,
	); err != nil {
		return nil, wrapPgError(err, "refund credit note")
	}

	after, err := loadCreditNote(ctx, tx, creditNoteID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund: %w", err)
	}
	audit(ctx, a.audit, "credit_note.refund", "credit_note", creditNoteID, "", before, after)
	return after, nil
}

func (a *paymentAggregator) ListCreditNotes(ctx context.Context, clientID int) ([]CreditNote, error) {
	if _, err := getClient(ctx, a.pool, clientID); err != nil {
		return nil, err
	}
	return clientCreditNotes(ctx, a.pool, clientID)
}

func clientCreditNotes(ctx context.Context, q pgxQuerier, clientID int) ([]CreditNote, error) {
	rows, err := q.Query(ctx, creditNoteSelect+" WHERE cn.client_id = $1 ORDER BY cn.created_at, cn.id", clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit notes: %w", err)
	}
	defer rows.Close()

	notes := []CreditNote{}
	for rows.Next() {
		cn, err := scanCreditNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit note: %w", err)
		}
		notes = append(notes, *cn)
	}
	return notes, rows.Err()
}

// ── Client balances ─────────────────────────────────────────────────────────

// collectibleInvoices loads every VALIDATED or CONTESTED invoice of a client, or
// of all clients when clientID is zero.
func collectibleInvoices(ctx context.Context, q pgxQuerier, clientID int, rates TaxRates) ([]*Invoice, error) {
	sql := invoiceSelect + " WHERE i.status IN ('VALIDATED', 'CONTESTED')"
	var args []any
	if clientID > 0 {
		sql += " AND i.client_id = $1"
		args = append(args, clientID)
	}
	invoices, err := queryInvoices(ctx, q, sql+" ORDER BY i.issued_on, i.id", args...)
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, q, invoices, rates); err != nil {
		return nil, err
	}
	return invoices, nil
}

func dueOf(invoices []*Invoice) decimal.Decimal {
	due := decimal.Zero
	for _, inv := range invoices {
		if inv.Balance.IsPositive() {
			due = due.Add(inv.Balance)
		}
	}
	return due
}

func (a *paymentAggregator) ClientTotalDue(ctx context.Context, clientID int) (decimal.Decimal, error) {
	if _, err := getClient(ctx, a.pool, clientID); err != nil {
		return decimal.Zero, err
	}
	invoices, err := collectibleInvoices(ctx, a.pool, clientID, a.rates)
	if err != nil {
		return decimal.Zero, err
	}
	return dueOf(invoices), nil
}

func (a *paymentAggregator) ClientTotalOwed(ctx context.Context, clientID int) (*OwedBreakdown, error) {
	if _, err := getClient(ctx, a.pool, clientID); err != nil {
		return nil, err
	}
	invoices, err := collectibleInvoices(ctx, a.pool, clientID, a.rates)
	if err != nil {
		return nil, err
	}
	notes, err := clientCreditNotes(ctx, a.pool, clientID)
	if err != nil {
		return nil, err
	}
	purchases, err := purchaseBalances(ctx, a.pool, clientID)
	if err != nil {
		return nil, err
	}
	owed := owedBreakdown(clientID, invoices, notes, purchases)
	return &owed, nil
}

// owedBreakdown combines the four sources of money owed to a client.
func owedBreakdown(clientID int, invoices []*Invoice, notes []CreditNote, purchases []purchaseBalance) OwedBreakdown {
	credit, overpaid, unpaid, purchaseOverpaid := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, cn := range notes {
		credit = credit.Add(cn.Outstanding)
	}
	for _, inv := range invoices {
		if inv.Balance.IsNegative() {
			overpaid = overpaid.Add(inv.Balance.Neg())
		}
	}
	for _, p := range purchases {
		bal := p.total.Sub(p.paid)
		if bal.IsPositive() {
			unpaid = unpaid.Add(bal)
		} else {
			purchaseOverpaid = purchaseOverpaid.Add(bal.Neg())
		}
	}
	return OwedBreakdown{
		ClientID: clientID,
		Contributions: []OwedContribution{
			{Source: OwedCreditNotes, Amount: credit},
			{Source: OwedInvoiceOverpayments, Amount: overpaid},
			{Source: OwedUnpaidPurchases, Amount: unpaid},
			{Source: OwedPurchaseOverpayments, Amount: purchaseOverpaid},
		},
	}
}

func (a *paymentAggregator) ClientStatement(ctx context.Context, clientID int) (*ClientStatement, error) {
	client, err := getClient(ctx, a.pool, clientID)
	if err != nil {
		return nil, err
	}
	invoices, err := collectibleInvoices(ctx, a.pool, clientID, a.rates)
	if err != nil {
		return nil, err
	}
	notes, err := clientCreditNotes(ctx, a.pool, clientID)
	if err != nil {
		return nil, err
	}
	purchases, err := purchaseBalances(ctx, a.pool, clientID)
	if err != nil {
		return nil, err
	}

	st := &ClientStatement{
		Client:      *client,
		Due:         dueOf(invoices),
		Owed:        owedBreakdown(clientID, invoices, notes, purchases),
		Invoices:    make([]InvoiceBalance, 0, len(invoices)),
		CreditNotes: notes,
		Supplier:    SupplierDebt{SupplierID: clientID, PurchaseCount: len(purchases)},
	}
	st.OwedTotal = st.Owed.Total()
	st.Net = st.Due.Sub(st.OwedTotal)
	for _, inv := range invoices {
		st.Invoices = append(st.Invoices, balanceOfInvoice(inv))
	}
	for _, p := range purchases {
		st.Supplier.TotalPurchased = st.Supplier.TotalPurchased.Add(p.total)
		st.Supplier.TotalPaid = st.Supplier.TotalPaid.Add(p.paid)
	}
	st.Supplier.Outstanding = st.Owed.Amount(OwedUnpaidPurchases)
	st.Supplier.Overpaid = st.Owed.Amount(OwedPurchaseOverpayments)
	return st, nil
}

func (a *paymentAggregator) Receivables(ctx context.Context) ([]Receivable, error) {
	invoices, err := collectibleInvoices(ctx, a.pool, 0, a.rates)
	if err != nil {
		return nil, err
	}
	return rankReceivables(invoices), nil
}

// rankReceivables groups positive invoice balances by client, largest due first.
func rankReceivables(invoices []*Invoice) []Receivable {
	byClient := map[int]*Receivable{}
	for _, inv := range invoices {
		if !inv.Balance.IsPositive() {
			continue
		}
		r, ok := byClient[inv.ClientID]
		if !ok {
			r = &Receivable{ClientID: inv.ClientID, ClientName: inv.ClientName, Due: decimal.Zero}
			byClient[inv.ClientID] = r
		}
		r.InvoiceCount++
		r.Due = r.Due.Add(inv.Balance)
	}

	out := make([]Receivable, 0, len(byClient))
	for _, r := range byClient {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.GreaterThan(out[j].Due)
		}
		return out[i].ClientID < out[j].ClientID
	})
	return out
}
