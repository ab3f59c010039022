package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type ContainerStatus string

const (
	ContainerPlanned    ContainerStatus = "PLANNED"
	ContainerInProgress ContainerStatus = "IN_PROGRESS"
	ContainerValidated  ContainerStatus = "VALIDATED"
)

// Container is an import shipment. Status only moves forward.
type Container struct {
	ID               int             `json:"id"`
	Ref              string          `json:"ref"`
	EstimatedArrival time.Time       `json:"estimated_arrival"`
	ActualArrival    *time.Time      `json:"actual_arrival,omitempty"`
	Status           ContainerStatus `json:"status"`
	Notes            string          `json:"notes"`
	ValidatedAt      *time.Time      `json:"validated_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Manifest         []ManifestLine  `json:"manifest"`
	Received         []ReceivedLine  `json:"received"`
}

// ManifestLine is the planned quantity of a product on a container.
type ManifestLine struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	PlannedQty  decimal.Decimal `json:"planned_qty"`
}

// ReceivedLine is what actually arrived. ReceivedQty drives the RECEPTION posting;
// BreakageQty is informational.
type ReceivedLine struct {
	ID          int             `json:"id"`
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	BreakageQty decimal.Decimal `json:"breakage_qty"`
	Comment     string          `json:"comment"`
}

type ContainerInput struct {
	Ref              string
	EstimatedArrival time.Time
	Notes            string
}

type ReceivedLineInput struct {
	ProductID   int
	ReceivedQty decimal.Decimal
	BreakageQty decimal.Decimal
	Comment     string
}

type ContainerFilter struct {
	Status ContainerStatus
	Search string
	From   *time.Time // on estimated arrival
	To     *time.Time
	PageRequest
}

type DiscrepancyKind string

const (
	DiscrepancyMatch DiscrepancyKind = "MATCH"
	DiscrepancyShort DiscrepancyKind = "SHORT"
	DiscrepancyOver  DiscrepancyKind = "OVER"
)

// Discrepancy compares planned and received quantities for one product.
// Difference is received minus planned.
type Discrepancy struct {
	ProductID   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	PlannedQty  decimal.Decimal `json:"planned_qty"`
	ReceivedQty decimal.Decimal `json:"received_qty"`
	BreakageQty decimal.Decimal `json:"breakage_qty"`
	Difference  decimal.Decimal `json:"difference"`
	Kind        DiscrepancyKind `json:"kind"`
}

func classifyDiscrepancy(planned, received decimal.Decimal) DiscrepancyKind {
	switch received.Cmp(planned) {
	case -1:
		return DiscrepancyShort
	case 1:
		return DiscrepancyOver
	}
	return DiscrepancyMatch
}
