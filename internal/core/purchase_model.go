package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseDraft     PurchaseStatus = "DRAFT"
	PurchaseValidated PurchaseStatus = "VALIDATED"
)

// Purchase is a goods-in document from a supplier (a client acting as supplier).
// Total and Paid are derived from lines and payments on every read.
type Purchase struct {
	ID           int               `json:"id"`
	Reference    string            `json:"reference"`
	SupplierID   int               `json:"supplier_id"`
	SupplierName string            `json:"supplier_name"`
	PurchasedOn  time.Time         `json:"purchased_on"`
	Status       PurchaseStatus    `json:"status"`
	Notes        string            `json:"notes"`
	ValidatedAt  *time.Time        `json:"validated_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Total        decimal.Decimal   `json:"total"`
	Paid         decimal.Decimal   `json:"paid"`
	Balance      decimal.Decimal   `json:"balance"`
	PaymentState PaymentStatus     `json:"payment_status"`
	Lines        []PurchaseLine    `json:"lines,omitempty"`
	Payments     []PurchasePayment `json:"payments,omitempty"`
}

type PurchaseLine struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type PurchasePayment struct {
	ID         int             `json:"id"`
	PurchaseID int             `json:"purchase_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	PaidOn     time.Time       `json:"paid_on"`
	Reference  string          `json:"reference"`
	CreatedAt  time.Time       `json:"created_at"`
}

type PurchaseInput struct {
	SupplierID  int
	PurchasedOn time.Time
	Notes       string
}

type PurchaseFilter struct {
	SupplierID int
	Status     PurchaseStatus
	Search     string
	From       *time.Time
	To         *time.Time
	PageRequest
}

// SupplierDebt summarizes what the business owes a supplier across validated purchases.
type SupplierDebt struct {
	SupplierID     int             `json:"supplier_id"`
	PurchaseCount  int             `json:"purchase_count"`
	TotalPurchased decimal.Decimal `json:"total_purchased"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Outstanding    decimal.Decimal `json:"outstanding"`
	Overpaid       decimal.Decimal `json:"overpaid"`
}
