package app

import (
	"github.com/shopspring/decimal"
)

// Dates are YYYY-MM-DD strings; decimals accept JSON strings or numbers.

// ClientRequest is the input for creating or updating a client.
type ClientRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	CompanyName string `json:"company_name" validate:"max=200"`
	Email       string `json:"email" validate:"omitempty,email,max=200"`
	Phone       string `json:"phone" validate:"max=50"`
	Address     string `json:"address"`
	IsActive    *bool  `json:"is_active"`
}

// ProductRequest is the input for creating or updating a product.
// BasePrice is honoured on creation only.
type ProductRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	SaleUnit          string           `json:"sale_unit" validate:"omitempty,oneof=BOTTLE PACK CASE"`
	Category          string           `json:"category" validate:"required,oneof=BEER JUICE"`
	BasePrice         *decimal.Decimal `json:"base_price" validate:"omitempty,decimal_gte0"`
	LowStockThreshold decimal.Decimal  `json:"low_stock_threshold" validate:"decimal_gte0"`
	IsActive          *bool            `json:"is_active"`
}

// ListRequest carries the common listing parameters.
type ListRequest struct {
	Search   string `json:"q"`
	Status   string `json:"status"`
	ClientID int    `json:"client_id" validate:"gte=0"`
	From     string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=200"`
	// IncludeInactive applies to client and product listings.
	IncludeInactive bool `json:"include_inactive"`
	// Category applies to product and stock listings.
	Category string `json:"category" validate:"omitempty,oneof=BEER JUICE"`
	// LowOnly applies to stock listings.
	LowOnly bool `json:"low_only"`
	// ProductID and Type apply to movement history.
	ProductID int    `json:"product_id" validate:"gte=0"`
	Type      string `json:"type" validate:"omitempty,oneof=RECEPTION SALE ADJUSTMENT BREAKAGE"`
}

// ReportRequest carries the query parameters of the reporting endpoints. Dates
// are inclusive days.
type ReportRequest struct {
	From   string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To     string `json:"to" validate:"omitempty,datetime=2006-01-02"`
	At     string `json:"at" validate:"omitempty,datetime=2006-01-02"`
	Period string `json:"period" validate:"omitempty,oneof=day week month"`
	Limit  int    `json:"limit" validate:"gte=0,lte=100"`
}

type PriceRequest struct {
	Price decimal.Decimal `json:"price" validate:"decimal_gte0"`
}

// StockAdjustmentRequest serves both adjustments (signed) and breakages (positive).
type StockAdjustmentRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"decimal_ne0"`
	Reason    string          `json:"reason" validate:"required,max=500"`
}

type ContainerRequest struct {
	Ref              string `json:"ref" validate:"required,max=100"`
	EstimatedArrival string `json:"estimated_arrival" validate:"required,datetime=2006-01-02"`
	Notes            string `json:"notes"`
}

type ArrivalRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type ManifestLineRequest struct {
	PlannedQty decimal.Decimal `json:"planned_qty" validate:"decimal_gt0"`
}

type ReceivedLineRequest struct {
	ReceivedQty decimal.Decimal `json:"received_qty" validate:"decimal_gte0"`
	BreakageQty decimal.Decimal `json:"breakage_qty" validate:"decimal_gte0"`
	Comment     string          `json:"comment" validate:"max=500"`
}

type InvoiceRequest struct {
	ClientID int    `json:"client_id" validate:"required,gt=0"`
	Type     string `json:"type" validate:"omitempty,oneof=DELIVERY PICKUP"`
	IssuedOn string `json:"issued_on" validate:"omitempty,datetime=2006-01-02"`
}

type InvoiceLineRequest struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
}

type LineQtyRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
}

type ContestRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
	Name   string `json:"name" validate:"max=200"`
	Email  string `json:"email" validate:"omitempty,email,max=200"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" validate:"max=2000"`
}

type ReminderRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type AcceptRequest struct {
	AcceptedBy string `json:"accepted_by" validate:"max=200"`
}

// PaymentRequest serves invoice and purchase payments.
type PaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Method    string          `json:"method" validate:"required,oneof=CASH TRANSFER CARD CHEQUE"`
	PaidOn    string          `json:"paid_on" validate:"omitempty,datetime=2006-01-02"`
	Reference string          `json:"reference" validate:"max=100"`
}

type CreditNoteRequest struct {
	ClientID        int             `json:"client_id" validate:"required,gt=0"`
	Amount          decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	OriginInvoiceID *int            `json:"origin_invoice_id" validate:"omitempty,gt=0"`
	Reason          string          `json:"reason" validate:"max=2000"`
}

type CreditNoteFromInvoiceRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type RefundRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	Method     string          `json:"method" validate:"required,oneof=CASH TRANSFER CARD CHEQUE"`
	RefundedOn string          `json:"refunded_on" validate:"omitempty,datetime=2006-01-02"`
}

type PurchaseRequest struct {
	SupplierID  int    `json:"supplier_id" validate:"required,gt=0"`
	PurchasedOn string `json:"purchased_on" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes"`
}

type PurchaseLineRequest struct {
	Quantity decimal.Decimal `json:"quantity" validate:"decimal_gt0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"decimal_gte0"`
}
