package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ── Report types ────────────────────────────────────────────────────────────

// StockValuation prices every active product's stock at its current base price.
// At is nil for the live balance. Lines only list products with stock on hand.
type StockValuation struct {
	At    *time.Time      `json:"at,omitempty"`
	Total decimal.Decimal `json:"total"`
	Lines []ValuationLine `json:"lines"`
}

type ValuationLine struct {
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Value       decimal.Decimal `json:"value"`
}

type SalesPeriod string

const (
	SalesByDay   SalesPeriod = "day"
	SalesByWeek  SalesPeriod = "week"
	SalesByMonth SalesPeriod = "month"
)

func (p SalesPeriod) valid() bool {
	return p == SalesByDay || p == SalesByWeek || p == SalesByMonth
}

// maxDayBuckets bounds a per-day sales breakdown.
const maxDayBuckets = 366

// SalesQuery selects invoices validated between From and To, both dates inclusive.
type SalesQuery struct {
	From   time.Time
	To     time.Time
	Period SalesPeriod
}

type SalesBucket struct {
	Label        string          `json:"label"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Revenue      decimal.Decimal `json:"revenue"`
	InvoiceCount int             `json:"invoice_count"`
}

// SalesSummary is revenue from VALIDATED and CONTESTED invoices by validation
// date, with the payments collected over the same dates.
type SalesSummary struct {
	Period       SalesPeriod     `json:"period"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Revenue      decimal.Decimal `json:"revenue"`
	InvoiceCount int             `json:"invoice_count"`
	Collected    decimal.Decimal `json:"collected"`
	Buckets      []SalesBucket   `json:"buckets"`
}

const (
	defaultTopProducts = 10
	maxTopProducts     = 100
)

// TopProductsQuery bounds the ranking by validation time; nil bounds are open.
type TopProductsQuery struct {
	From  *time.Time
	To    *time.Time
	Limit int
}

// ProductSales is one product's sold quantity and revenue before tax.
type ProductSales struct {
	ProductID    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Category     ProductCategory `json:"category"`
	SaleUnit     SaleUnit        `json:"sale_unit"`
	Quantity     decimal.Decimal `json:"quantity"`
	Revenue      decimal.Decimal `json:"revenue"`
	InvoiceCount int             `json:"invoice_count"`
}

// ── Stock valuation ─────────────────────────────────────────────────────────

func (s *stockLedger) Valuation(ctx context.Context, at *time.Time) (*StockValuation, error) {
	// Snapshots only summarize history, so a dated valuation sums movements directly.
	qtySQL := `COALESCE(s.quantity, 0) + COALESCE((
			SELECT SUM(m.quantity) FROM stock_movements m
			WHERE m.product_id = p.id AND m.id > COALESCE(s.last_movement_id, 0)
		), 0)`
	var args []any
	if at != nil {
		qtySQL = `COALESCE((
			SELECT SUM(m.quantity) FROM stock_movements m
			WHERE m.product_id = p.id AND m.created_at <= $1
		), 0)`
		args = append(args, *at)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, COALESCE(p.base_price, 0), `+qtySQL+`
		FROM products p
		LEFT JOIN stock_snapshots s ON s.product_id = p.id
		WHERE p.is_active
		ORDER BY p.name, p.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock valuation: %w", err)
	}
	defer rows.Close()

	v := &StockValuation{At: at, Total: decimal.Zero, Lines: []ValuationLine{}}
	for rows.Next() {
		var l ValuationLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan stock valuation: %w", err)
		}
		if !l.Quantity.IsPositive() {
			continue
		}
		l.Value = LineTotal(l.Quantity, l.UnitPrice)
		v.Total = v.Total.Add(l.Value)
		v.Lines = append(v.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stock valuation: %w", err)
	}
	return v, nil
}

// ── Sales ───────────────────────────────────────────────────────────────────

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (q SalesQuery) normalize() (SalesQuery, error) {
	if q.From.IsZero() || q.To.IsZero() {
		return q, validationf("sales range needs both from and to")
	}
	q.From, q.To = dateOf(q.From), dateOf(q.To)
	if q.To.Before(q.From) {
		return q, validationf("sales range ends before it starts")
	}
	if q.Period == "" {
		q.Period = SalesByMonth
	}
	if !q.Period.valid() {
		return q, validationf("unknown sales period %q", q.Period)
	}
	if q.Period == SalesByDay && q.To.Sub(q.From) >= maxDayBuckets*24*time.Hour {
		return q, validationf("daily sales are limited to %d days", maxDayBuckets)
	}
	return q, nil
}

// salesBuckets splits [from, to] into consecutive periods. Month buckets follow
// the calendar and are clipped to the range.
func salesBuckets(from, to time.Time, period SalesPeriod) []SalesBucket {
	var out []SalesBucket
	for start := from; !start.After(to); {
		var next time.Time
		var label string
		switch period {
		case SalesByDay:
			next = start.AddDate(0, 0, 1)
			label = start.Format("2006-01-02")
		case SalesByWeek:
			next = start.AddDate(0, 0, 7)
			label = start.Format("2006-01-02")
		default:
			next = time.Date(start.Year(), start.Month()+1, 1, 0, 0, 0, 0, start.Location())
			label = start.Format("2006-01")
		}
		end := next.AddDate(0, 0, -1)
		if end.After(to) {
			end = to
		}
		out = append(out, SalesBucket{Label: label, Start: start, End: end, Revenue: decimal.Zero})
		start = next
	}
	return out
}

// fillBuckets adds each invoice's total to the bucket covering its validation date.
func fillBuckets(buckets []SalesBucket, invoices []*Invoice) {
	for _, inv := range invoices {
		if inv.ValidatedAt == nil {
			continue
		}
		day := dateOf(inv.ValidatedAt.In(buckets[0].Start.Location()))
		for i := range buckets {
			if !day.Before(buckets[i].Start) && !day.After(buckets[i].End) {
				buckets[i].Revenue = buckets[i].Revenue.Add(inv.Totals.Total)
				buckets[i].InvoiceCount++
				break
			}
		}
	}
}

func (a *paymentAggregator) SalesSummary(ctx context.Context, q SalesQuery) (*SalesSummary, error) {
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}
	end := q.To.AddDate(0, 0, 1)

	invoices, err := queryInvoices(ctx, a.pool, invoiceSelect+`
		WHERE i.status IN ('VALIDATED', 'CONTESTED') AND i.validated_at >= $1 AND i.validated_at < $2
		ORDER BY i.validated_at, i.id`, q.From, end)
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, a.pool, invoices, a.rates); err != nil {
		return nil, err
	}

	sum := &SalesSummary{
		Period:       q.Period,
		From:         q.From,
		To:           q.To,
		Subtotal:     decimal.Zero,
		Tax:          decimal.Zero,
		Revenue:      decimal.Zero,
		InvoiceCount: len(invoices),
		Buckets:      salesBuckets(q.From, q.To, q.Period),
	}
	for _, inv := range invoices {
		sum.Subtotal = sum.Subtotal.Add(inv.Totals.Subtotal)
		sum.Tax = sum.Tax.Add(inv.Totals.Tax)
		sum.Revenue = sum.Revenue.Add(inv.Totals.Total)
	}
	fillBuckets(sum.Buckets, invoices)

	if err := a.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE paid_on >= $1 AND paid_on <= $2",
		q.From, q.To,
	).Scan(&sum.Collected); err != nil {
		return nil, fmt.Errorf("failed to sum collected payments: %w", err)
	}
	return sum, nil
}

func (a *paymentAggregator) TopProducts(ctx context.Context, q TopProductsQuery) ([]ProductSales, error) {
	if q.Limit <= 0 {
		q.Limit = defaultTopProducts
	}
	if q.Limit > maxTopProducts {
		q.Limit = maxTopProducts
	}

	var w whereBuilder
	w.add("i.status = ANY(?)", []string{string(InvoiceValidated), string(InvoiceContested)})
	if q.From != nil {
		w.add("i.validated_at >= ?", *q.From)
	}
	if q.To != nil {
		w.add("i.validated_at <= ?", *q.To)
	}
	limit, args := w.page(PageRequest{Page: 1, PageSize: q.Limit})

	rows, err := a.pool.Query(ctx, `
		SELECT p.id, p.name, p.category, p.sale_unit,
		       SUM(l.quantity), SUM(ROUND(l.quantity * l.unit_price, 2)), COUNT(DISTINCT i.id)
		FROM invoice_lines l
		JOIN invoices i ON i.id = l.invoice_id
		JOIN products p ON p.id = l.product_id`+w.sql()+`
		GROUP BY p.id, p.name, p.category, p.sale_unit
		ORDER BY SUM(l.quantity) DESC, p.id`+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer rows.Close()

	out := []ProductSales{}
	for rows.Next() {
		var ps ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.Category, &ps.SaleUnit,
			&ps.Quantity, &ps.Revenue, &ps.InvoiceCount); err != nil {
			return nil, fmt.Errorf("failed to scan product sales: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}

// ── Dues at a date ──────────────────────────────────────────────────────────

// DuesAt lists what each client owed at the end of the given day: invoices
// validated by then, less the payments dated on or before it.
func (a *paymentAggregator) DuesAt(ctx context.Context, at time.Time) ([]Receivable, error) {
	day := dateOf(at)
	invoices, err := queryInvoices(ctx, a.pool, invoiceSelect+`
		WHERE i.status IN ('VALIDATED', 'CONTESTED') AND i.validated_at < $1
		ORDER BY i.issued_on, i.id`, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if err := attachLines(ctx, a.pool, invoices, a.rates); err != nil {
		return nil, err
	}

	rows, err := a.pool.Query(ctx, `
		SELECT invoice_id, SUM(amount) FROM payments
		WHERE paid_on <= $1
		GROUP BY invoice_id`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to sum payments at %s: %w", day.Format(time.DateOnly), err)
	}
	defer rows.Close()
	paid := map[int]decimal.Decimal{}
	for rows.Next() {
		var id int
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan payment sum: %w", err)
		}
		paid[id] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read payment sums: %w", err)
	}

	for _, inv := range invoices {
		inv.Paid = paid[inv.ID]
		inv.computeTotals(a.rates)
	}
	return rankReceivables(invoices), nil
}
