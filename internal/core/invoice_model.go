package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceType string

const (
	InvoiceDelivery InvoiceType = "DELIVERY"
	InvoicePickup   InvoiceType = "PICKUP"
)

func (t InvoiceType) Valid() bool {
	return t == InvoiceDelivery || t == InvoicePickup
}

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "DRAFT"
	InvoiceValidated InvoiceStatus = "VALIDATED"
	InvoiceCancelled InvoiceStatus = "CANCELLED"
	InvoiceContested InvoiceStatus = "CONTESTED"
)

// collectible reports whether payments, credit notes and due amounts apply.
func (s InvoiceStatus) collectible() bool {
	return s == InvoiceValidated || s == InvoiceContested
}

// Invoice is a sales document. Totals, Paid and Balance are computed on read;
// lines of a validated invoice carry the tax rate frozen at validation.
type Invoice struct {
	ID           int             `json:"id"`
	Number       string          `json:"number"`
	ClientID     int             `json:"client_id"`
	ClientName   string          `json:"client_name"`
	Type         InvoiceType     `json:"type"`
	Status       InvoiceStatus   `json:"status"`
	TaxIncluded  bool            `json:"tax_included"`
	IssuedOn     time.Time       `json:"issued_on"`
	ValidatedAt  *time.Time      `json:"validated_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
	ReminderDate *time.Time      `json:"reminder_date,omitempty"`
	Contestation *Contestation   `json:"contestation,omitempty"`
	Acceptance   *Acceptance     `json:"acceptance,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []InvoiceLine   `json:"lines"`
	Totals       Totals          `json:"totals"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
	PaymentState PaymentStatus   `json:"payment_status"`
}

type InvoiceLine struct {
	ID          int              `json:"id"`
	ProductID   int              `json:"product_id"`
	ProductName string           `json:"product_name"`
	Category    ProductCategory  `json:"category"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	LineTotal   decimal.Decimal  `json:"line_total"`
}

// Contestation is the dispute raised by a client. ResolvedAt is set once the
// invoice has returned to VALIDATED; the fields are kept as history.
type Contestation struct {
	Reason     string     `json:"reason"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	At         time.Time  `json:"at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
}

// Acceptance records a client accepting an invoice through a token link.
type Acceptance struct {
	InvoiceID  int       `json:"invoice_id"`
	Number     string    `json:"number"`
	AcceptedBy string    `json:"accepted_by"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// AcceptanceToken is returned once at issue time. Only its hash is stored.
type AcceptanceToken struct {
	InvoiceID int       `json:"invoice_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type InvoiceInput struct {
	ClientID int
	Type     InvoiceType
	IssuedOn time.Time
}

type InvoiceFilter struct {
	ClientID int
	Status   InvoiceStatus
	Search   string
	From     *time.Time
	To       *time.Time
	PageRequest
}

// InvoiceOptions carries the configurable business constants of the engine.
type InvoiceOptions struct {
	TaxRates     TaxRates
	TokenTTL     time.Duration
	ReminderDays int
}

const (
	defaultTokenTTL     = 14 * 24 * time.Hour
	defaultReminderDays = 30
)

func (o InvoiceOptions) withDefaults() InvoiceOptions {
	if o.TaxRates == nil {
		o.TaxRates = DefaultTaxRates()
	}
	if o.TokenTTL <= 0 {
		o.TokenTTL = defaultTokenTTL
	}
	if o.ReminderDays <= 0 {
		o.ReminderDays = defaultReminderDays
	}
	return o
}

func (inv *Invoice) computeTotals(rates TaxRates) {
	lines := make([]TotalsLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = TotalsLine{Category: l.Category, Quantity: l.Quantity, UnitPrice: l.UnitPrice, TaxRate: l.TaxRate}
	}
	inv.Totals = ComputeTotals(lines, inv.TaxIncluded, rates)
	inv.Balance = inv.Totals.Total.Sub(inv.Paid)
	inv.PaymentState = DerivePaymentStatus(inv.Totals.Total, inv.Paid)
}
