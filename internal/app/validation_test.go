package app

import (
	"testing"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest_ReportsJSONFieldNames(t *testing.T) {
	err := validateRequest(ProductRequest{Category: "WINE"})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "category=oneof")
	assert.Contains(t, err.Error(), "name=required")
}

func TestValidateRequest_DecimalTags(t *testing.T) {
	assert.NoError(t, validateRequest(ManifestLineRequest{PlannedQty: decimal.RequireFromString("12")}))

	err := validateRequest(ManifestLineRequest{PlannedQty: decimal.Zero})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "planned_qty=decimal_gt0")

	err = validateRequest(PriceRequest{Price: decimal.RequireFromString("-0.01")})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.NoError(t, validateRequest(PriceRequest{Price: decimal.Zero}))

	err = validateRequest(StockAdjustmentRequest{ProductID: 1, Reason: "stocktake"})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "quantity=decimal_ne0")
}

func TestValidateRequest_Dates(t *testing.T) {
	assert.NoError(t, validateRequest(ArrivalRequest{Date: "2026-03-01"}))
	assert.ErrorIs(t, validateRequest(ArrivalRequest{Date: "01/03/2026"}), core.ErrValidation)
	assert.ErrorIs(t, validateRequest(ListRequest{PageSize: 500}), core.ErrValidation)
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("paid_on", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDate("paid_on", "2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), d)

	_, err = parseDate("paid_on", "2026-02-30")
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Contains(t, err.Error(), "paid_on")

	opt, err := parseOptionalDate("from", "")
	require.NoError(t, err)
	assert.Nil(t, opt)
	opt, err = parseOptionalDate("from", "2026-01-15")
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, 15, opt.Day())
}

func TestValidateRequest_Reports(t *testing.T) {
	assert.NoError(t, validateRequest(ReportRequest{From: "2026-01-01", To: "2026-01-31", Period: "week", Limit: 20}))
	assert.ErrorIs(t, validateRequest(ReportRequest{Period: "quarter"}), core.ErrValidation)
	assert.ErrorIs(t, validateRequest(ReportRequest{Limit: 500}), core.ErrValidation)
	assert.ErrorIs(t, validateRequest(ReportRequest{At: "31/01/2026"}), core.ErrValidation)
}

func TestEndOfDay(t *testing.T) {
	day := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	end := endOfDay(day)
	assert.Equal(t, 31, end.Day())
	assert.True(t, end.Add(time.Nanosecond).Equal(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}
