package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLineTotal_RoundsToCents(t *testing.T) {
	assert.Equal(t, "3.70", LineTotal(d("3"), d("1.2345")).StringFixed(2))
	assert.True(t, LineTotal(d("0.5"), d("0.01")).Equal(d("0.01")))
}

func TestComputeTotals_WithoutTax(t *testing.T) {
	lines := []TotalsLine{
		{Category: CategoryBeer, Quantity: d("3"), UnitPrice: d("10.00")},
		{Category: CategoryJuice, Quantity: d("2"), UnitPrice: d("2.40")},
	}
	got := ComputeTotals(lines, false, DefaultTaxRates())
	assert.True(t, got.Subtotal.Equal(d("34.80")))
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Total.Equal(d("34.80")))
	assert.Empty(t, got.Taxes)
}

func TestComputeTotals_TaxPerCategory(t *testing.T) {
	lines := []TotalsLine{
		{Category: CategoryJuice, Quantity: d("2"), UnitPrice: d("2.40")},
		{Category: CategoryBeer, Quantity: d("3"), UnitPrice: d("10.00")},
		{Category: CategoryBeer, Quantity: d("1"), UnitPrice: d("5.00")},
	}
	got := ComputeTotals(lines, true, DefaultTaxRates())

	require.Len(t, got.Taxes, 2)
	assert.Equal(t, CategoryBeer, got.Taxes[0].Category)
	assert.True(t, got.Taxes[0].Base.Equal(d("35.00")))
	assert.True(t, got.Taxes[0].Amount.Equal(d("7.00")))
	assert.Equal(t, CategoryJuice, got.Taxes[1].Category)
	// 4.80 × 5.5% = 0.264
	assert.True(t, got.Taxes[1].Amount.Equal(d("0.26")))

	assert.True(t, got.Subtotal.Equal(d("39.80")))
	assert.True(t, got.Tax.Equal(d("7.26")))
	assert.True(t, got.Total.Equal(d("47.06")))
}

func TestComputeTotals_FrozenRateWins(t *testing.T) {
	frozen := d("19.60")
	lines := []TotalsLine{
		{Category: CategoryBeer, Quantity: d("1"), UnitPrice: d("100.00"), TaxRate: &frozen},
		{Category: CategoryBeer, Quantity: d("1"), UnitPrice: d("100.00")},
	}
	got := ComputeTotals(lines, true, DefaultTaxRates())
	require.Len(t, got.Taxes, 2)
	assert.True(t, got.Taxes[0].Rate.Equal(d("19.60")))
	assert.True(t, got.Taxes[1].Rate.Equal(d("20.00")))
	assert.True(t, got.Tax.Equal(d("39.60")))
}

func TestComputeTotals_UnknownCategoryIsUntaxed(t *testing.T) {
	got := ComputeTotals([]TotalsLine{
		{Category: "WINE", Quantity: d("1"), UnitPrice: d("8.00")},
	}, true, TaxRates{})
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Total.Equal(d("8.00")))
}

func TestComputeTotals_Empty(t *testing.T) {
	got := ComputeTotals(nil, true, DefaultTaxRates())
	assert.True(t, got.Total.IsZero())
	assert.NotNil(t, got.Taxes)
}

func TestDerivePaymentStatus(t *testing.T) {
	cases := []struct {
		total, paid string
		want        PaymentStatus
	}{
		{"100.00", "0", PaymentUnpaid},
		{"100.00", "60.00", PaymentPartial},
		{"100.00", "100.00", PaymentPaid},
		{"100.00", "110.00", PaymentOverpaid},
		{"0", "0", PaymentUnpaid},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DerivePaymentStatus(d(c.total), d(c.paid)), "total=%s paid=%s", c.total, c.paid)
	}
}
