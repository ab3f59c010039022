package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductCategory string

const (
	CategoryBeer  ProductCategory = "BEER"
	CategoryJuice ProductCategory = "JUICE"
)

func (c ProductCategory) Valid() bool {
	return c == CategoryBeer || c == CategoryJuice
}

type SaleUnit string

const (
	UnitBottle SaleUnit = "BOTTLE"
	UnitPack   SaleUnit = "PACK"
	UnitCase   SaleUnit = "CASE"
)

func (u SaleUnit) Valid() bool {
	return u == UnitBottle || u == UnitPack || u == UnitCase
}

// Client is a customer. The same record acts as supplier on purchases.
type Client struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	CompanyName string    `json:"company_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type ClientInput struct {
	Name        string
	CompanyName string
	Email       string
	Phone       string
	Address     string
	IsActive    bool
}

type ClientFilter struct {
	Search          string
	IncludeInactive bool
	PageRequest
}

// Product is a sellable SKU. BasePrice is nil until a price is configured.
type Product struct {
	ID                int              `json:"id"`
	Name              string           `json:"name"`
	SaleUnit          SaleUnit         `json:"sale_unit"`
	Category          ProductCategory  `json:"category"`
	BasePrice         *decimal.Decimal `json:"base_price,omitempty"`
	LowStockThreshold decimal.Decimal  `json:"low_stock_threshold"`
	IsActive          bool             `json:"is_active"`
	CreatedAt         time.Time        `json:"created_at"`
}

type ProductInput struct {
	Name              string
	SaleUnit          SaleUnit
	Category          ProductCategory
	BasePrice         *decimal.Decimal // creation only; later changes go through PricingResolver.SetBasePrice
	LowStockThreshold decimal.Decimal
	IsActive          bool
}

type ProductFilter struct {
	Search          string
	Category        ProductCategory
	IncludeInactive bool
	PageRequest
}

// ClientPrice overrides a product's base price for one client.
type ClientPrice struct {
	ClientID    int             `json:"client_id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Price       decimal.Decimal `json:"price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// PriceChange is one entry of a product's append-only base price history.
type PriceChange struct {
	ID        int             `json:"id"`
	ProductID int             `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
	Actor     string          `json:"actor"`
	ChangedAt time.Time       `json:"changed_at"`
}

// PaymentMethod is shared by invoice payments, purchase payments and refunds.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
	MethodCard     PaymentMethod = "CARD"
	MethodCheque   PaymentMethod = "CHEQUE"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodTransfer, MethodCard, MethodCheque:
		return true
	}
	return false
}
