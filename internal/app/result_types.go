package app

import (
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"
	"github.com/shopspring/decimal"
)

// StockBalanceResult is returned by ProductStock.
type StockBalanceResult struct {
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	// At is set when the balance was computed as of a past date.
	At          *time.Time      `json:"at,omitempty"`
}

// ReconciliationResult is returned by ReconcileContainer.
type ReconciliationResult struct {
	ContainerID   int                  `json:"container_id"`
	Ref           string               `json:"ref"`
	Status        core.ContainerStatus `json:"status"`
	Discrepancies []core.Discrepancy   `json:"discrepancies"`
	Matches       int                  `json:"matches"`
	Shortages     int                  `json:"shortages"`
	Overages      int                  `json:"overages"`
}

// ClientBalanceResult is returned by ClientBalance.
type ClientBalanceResult struct {
	ClientID  int                `json:"client_id"`
	Due       decimal.Decimal    `json:"due"`
	Owed      core.OwedBreakdown `json:"owed"`
	OwedTotal decimal.Decimal    `json:"owed_total"`
	Net       decimal.Decimal    `json:"net"`
}

// CompactionResult is returned by CompactStock.
type CompactionResult struct {
	Products int `json:"products"`
}
