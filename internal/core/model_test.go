package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientStockError_Is(t *testing.T) {
	err := fmt.Errorf("post sale: %w", &InsufficientStockError{
		ProductID: 3, ProductName: "Pils", Available: d("6"), Requested: d("7"),
	})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrValidation))

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 3, stockErr.ProductID)
	assert.Contains(t, err.Error(), "available 6, requested 7")
}

func TestErrorHelpersWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, validationf("bad %d", 1), ErrValidation)
	assert.ErrorIs(t, invalidStatef("no"), ErrInvalidStateTransition)
	assert.ErrorIs(t, notFoundf("client %d", 9), ErrNotFound)
}

func TestWrapPgError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "containers_ref_key"}
	assert.ErrorIs(t, wrapPgError(dup, "create container"), ErrValidation)

	fk := &pgconn.PgError{Code: "23503", ConstraintName: "invoices_client_id_fkey"}
	assert.ErrorIs(t, wrapPgError(fk, "create invoice"), ErrNotFound)

	other := errors.New("connection reset")
	err := wrapPgError(other, "list invoices")
	assert.ErrorIs(t, err, other)
	assert.Contains(t, err.Error(), "failed to list invoices")
}

func TestClassifyDiscrepancy(t *testing.T) {
	assert.Equal(t, DiscrepancyShort, classifyDiscrepancy(d("100"), d("98")))
	assert.Equal(t, DiscrepancyOver, classifyDiscrepancy(d("100"), d("101")))
	assert.Equal(t, DiscrepancyMatch, classifyDiscrepancy(d("100"), d("100.000")))
	assert.Equal(t, DiscrepancyShort, classifyDiscrepancy(d("5"), decimal.Zero))
}

func TestMovementInput_Validate(t *testing.T) {
	ok := []MovementInput{
		{ProductID: 1, Quantity: d("10"), Type: MovementReception},
		{ProductID: 1, Quantity: d("-2"), Type: MovementSale},
		{ProductID: 1, Quantity: d("-1"), Type: MovementBreakage, Reason: "dropped pallet"},
		{ProductID: 1, Quantity: d("4"), Type: MovementAdjustment, Reason: "stocktake"},
	}
	for _, in := range ok {
		assert.NoError(t, in.validate(), "%+v", in)
	}

	bad := []MovementInput{
		{ProductID: 0, Quantity: d("1"), Type: MovementReception},
		{ProductID: 1, Quantity: decimal.Zero, Type: MovementAdjustment, Reason: "x"},
		{ProductID: 1, Quantity: d("-1"), Type: MovementReception},
		{ProductID: 1, Quantity: d("2"), Type: MovementSale},
		{ProductID: 1, Quantity: d("-1"), Type: MovementBreakage},
		{ProductID: 1, Quantity: d("3"), Type: MovementAdjustment},
		{ProductID: 1, Quantity: d("3"), Type: "GIFT"},
	}
	for _, in := range bad {
		assert.ErrorIs(t, in.validate(), ErrValidation, "%+v", in)
	}
}

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	assert.Equal(t, "", w.sql())

	w.add("client_id = ?", 4)
	w.add("(lower(number) LIKE ? OR lower(client_name) LIKE ?)", "%gsa%")
	assert.Equal(t, " WHERE client_id = $1 AND (lower(number) LIKE $2 OR lower(client_name) LIKE $2)", w.sql())

	limit, args := w.page(PageRequest{Page: 3, PageSize: 10})
	assert.Equal(t, " LIMIT $3 OFFSET $4", limit)
	assert.Equal(t, []any{4, "%gsa%", 10, 20}, args)
	assert.Equal(t, []any{4, "%gsa%"}, w.args, "count query args stay unpaged")

	// A second page call binds the same placeholders rather than stacking.
	limit, args = w.page(PageRequest{Page: 1, PageSize: 5})
	assert.Equal(t, " LIMIT $3 OFFSET $4", limit)
	assert.Equal(t, []any{4, "%gsa%", 5, 0}, args)
}

func TestPageRequest_Normalize(t *testing.T) {
	p := PageRequest{}.normalize()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, defaultPageSize, p.PageSize)

	p = PageRequest{Page: 2, PageSize: 10_000}.normalize()
	assert.Equal(t, maxPageSize, p.PageSize)
	assert.Equal(t, maxPageSize, p.offset())
}

func TestOwedBreakdown(t *testing.T) {
	invoices := []*Invoice{
		{ID: 1, Balance: d("-10.00")},
		{ID: 2, Balance: d("40.00")},
	}
	notes := []CreditNote{{ID: 1, Outstanding: d("25.00")}}
	purchases := []purchaseBalance{
		{id: 1, total: d("300.00"), paid: d("100.00")},
		{id: 2, total: d("50.00"), paid: d("65.00")},
	}

	b := owedBreakdown(7, invoices, notes, purchases)
	assert.Equal(t, 7, b.ClientID)
	require.Len(t, b.Contributions, 4)
	assert.True(t, b.Amount(OwedCreditNotes).Equal(d("25.00")))
	assert.True(t, b.Amount(OwedInvoiceOverpayments).Equal(d("10.00")))
	assert.True(t, b.Amount(OwedUnpaidPurchases).Equal(d("200.00")))
	assert.True(t, b.Amount(OwedPurchaseOverpayments).Equal(d("15.00")))
	assert.True(t, b.Total().Equal(d("250.00")))
}

func TestAcceptanceTokenHashing(t *testing.T) {
	raw, hash, err := newAcceptanceToken()
	require.NoError(t, err)
	assert.Len(t, raw, 43)
	assert.Equal(t, hashToken(raw), hash)
	assert.NotEqual(t, raw, hash)

	raw2, _, err := newAcceptanceToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "GSA-2026-000042", formatDocumentNumber(KindInvoice, 2026, 42))
	assert.Equal(t, "ACHAT-2025-000001", formatDocumentNumber(KindPurchase, 2025, 1))
}
