package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is money received against a validated or contested invoice.
type Payment struct {
	ID        int             `json:"id"`
	InvoiceID int             `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	PaidOn    time.Time       `json:"paid_on"`
	Reference string          `json:"reference"`
	Actor     string          `json:"actor"`
	CreatedAt time.Time       `json:"created_at"`
}

type PaymentInput struct {
	Amount    decimal.Decimal
	Method    PaymentMethod
	PaidOn    time.Time
	Reference string
}

func (in PaymentInput) validate() error {
	if !in.Amount.IsPositive() {
		return validationf("payment amount must be positive, got %s", in.Amount)
	}
	if !in.Method.Valid() {
		return validationf("invalid payment method %q", in.Method)
	}
	return nil
}

// CreditNote is an amount the business owes a client. Outstanding is the amount
// less its refunds.
type CreditNote struct {
	ID              int                `json:"id"`
	ClientID        int                `json:"client_id"`
	OriginInvoiceID *int               `json:"origin_invoice_id,omitempty"`
	Amount          decimal.Decimal    `json:"amount"`
	Refunded        decimal.Decimal    `json:"refunded"`
	Outstanding     decimal.Decimal    `json:"outstanding"`
	Reason          string             `json:"reason"`
	CreatedAt       time.Time          `json:"created_at"`
	Refunds         []CreditNoteRefund `json:"refunds,omitempty"`
}

type CreditNoteRefund struct {
	ID           int             `json:"id"`
	CreditNoteID int             `json:"credit_note_id"`
	Amount       decimal.Decimal `json:"amount"`
	Method       PaymentMethod   `json:"method"`
	RefundedOn   time.Time       `json:"refunded_on"`
	CreatedAt    time.Time       `json:"created_at"`
}

type CreditNoteInput struct {
	ClientID        int
	Amount          decimal.Decimal
	OriginInvoiceID *int
	Reason          string
}

type RefundInput struct {
	Amount     decimal.Decimal
	Method     PaymentMethod
	RefundedOn time.Time
}

// OwedSource tags one component of what the business owes a client.
type OwedSource string

const (
	OwedCreditNotes          OwedSource = "CREDIT_NOTES"
	OwedInvoiceOverpayments  OwedSource = "INVOICE_OVERPAYMENTS"
	OwedUnpaidPurchases      OwedSource = "UNPAID_PURCHASES"
	OwedPurchaseOverpayments OwedSource = "PURCHASE_OVERPAYMENTS"
)

type OwedContribution struct {
	Source OwedSource      `json:"source"`
	Amount decimal.Decimal `json:"amount"`
}

// OwedBreakdown always carries one contribution per source, in a fixed order.
type OwedBreakdown struct {
	ClientID      int                `json:"client_id"`
	Contributions []OwedContribution `json:"contributions"`
}

func (b OwedBreakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range b.Contributions {
		total = total.Add(c.Amount)
	}
	return total
}

// Amount returns the contribution of one source.
func (b OwedBreakdown) Amount(source OwedSource) decimal.Decimal {
	for _, c := range b.Contributions {
		if c.Source == source {
			return c.Amount
		}
	}
	return decimal.Zero
}

// InvoiceBalance is the money position of one invoice.
type InvoiceBalance struct {
	InvoiceID    int             `json:"invoice_id"`
	Number       string          `json:"number"`
	Status       InvoiceStatus   `json:"status"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
	PaymentState PaymentStatus   `json:"payment_status"`
}

func balanceOfInvoice(inv *Invoice) InvoiceBalance {
	return InvoiceBalance{
		InvoiceID:    inv.ID,
		Number:       inv.Number,
		Status:       inv.Status,
		Total:        inv.Totals.Total,
		Paid:         inv.Paid,
		Balance:      inv.Balance,
		PaymentState: inv.PaymentState,
	}
}

// ClientStatement is the full receivable and payable position of a client.
// Net is due minus owed; a negative net means the business owes the client.
type ClientStatement struct {
	Client      Client           `json:"client"`
	Due         decimal.Decimal  `json:"due"`
	Owed        OwedBreakdown    `json:"owed"`
	OwedTotal   decimal.Decimal  `json:"owed_total"`
	Net         decimal.Decimal  `json:"net"`
	Invoices    []InvoiceBalance `json:"invoices"`
	CreditNotes []CreditNote     `json:"credit_notes"`
	Supplier    SupplierDebt     `json:"supplier"`
}

// Receivable is one client's due amount in the receivables listing.
type Receivable struct {
	ClientID     int             `json:"client_id"`
	ClientName   string          `json:"client_name"`
	InvoiceCount int             `json:"invoice_count"`
	Due          decimal.Decimal `json:"due"`
}
