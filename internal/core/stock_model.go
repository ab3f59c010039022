package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementReception  MovementType = "RECEPTION"
	MovementSale       MovementType = "SALE"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementBreakage   MovementType = "BREAKAGE"
)

// StockMovement is an immutable signed quantity event.
type StockMovement struct {
	ID          int64           `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Type        MovementType    `json:"type"`
	Reference   string          `json:"reference"`
	Reason      string          `json:"reason"`
	Actor       string          `json:"actor"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MovementInput describes a posting. Quantity is signed: RECEPTION is positive,
// SALE and BREAKAGE are negative, ADJUSTMENT is either and needs a Reason.
type MovementInput struct {
	ProductID int
	Quantity  decimal.Decimal
	Type      MovementType
	Reference string
	Reason    string
}

func (in MovementInput) validate() error {
	if in.ProductID <= 0 {
		return validationf("product is required")
	}
	if in.Quantity.IsZero() {
		return validationf("movement quantity cannot be zero")
	}
	switch in.Type {
	case MovementReception:
		if in.Quantity.IsNegative() {
			return validationf("reception quantity must be positive, got %s", in.Quantity)
		}
	case MovementSale, MovementBreakage:
		if in.Quantity.IsPositive() {
			return validationf("%s quantity must be negative, got %s", in.Type, in.Quantity)
		}
	case MovementAdjustment:
	default:
		return validationf("unknown movement type %q", in.Type)
	}
	if (in.Type == MovementAdjustment || in.Type == MovementBreakage) && in.Reason == "" {
		return validationf("%s requires a reason", in.Type)
	}
	return nil
}

// StockLevel is the derived balance of one product.
type StockLevel struct {
	ProductID         int             `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Category          ProductCategory `json:"category"`
	SaleUnit          SaleUnit        `json:"sale_unit"`
	Quantity          decimal.Decimal `json:"quantity"`
	LowStockThreshold decimal.Decimal `json:"low_stock_threshold"`
	IsLow             bool            `json:"is_low"`
}

type StockFilter struct {
	Search          string
	Category        ProductCategory
	LowOnly         bool
	IncludeInactive bool
}

type MovementFilter struct {
	ProductID int
	Type      MovementType
	From      *time.Time
	To        *time.Time
	PageRequest
}
