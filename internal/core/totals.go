package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// TaxRates maps a product category to its rate in percent (20.00 = 20%).
type TaxRates map[ProductCategory]decimal.Decimal

// DefaultTaxRates are the rates used when configuration supplies none.
func DefaultTaxRates() TaxRates {
	return TaxRates{
		CategoryBeer:  decimal.RequireFromString("20.00"),
		CategoryJuice: decimal.RequireFromString("5.50"),
	}
}

// Rate returns the configured rate for c, or zero for unknown categories.
func (r TaxRates) Rate(c ProductCategory) decimal.Decimal {
	if rate, ok := r[c]; ok {
		return rate
	}
	return decimal.Zero
}

var hundred = decimal.NewFromInt(100)

// TotalsLine is the minimal view of an invoice line needed to compute totals.
type TotalsLine struct {
	Category  ProductCategory
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	// TaxRate is the frozen rate of a validated line; nil uses the configured rate.
	TaxRate *decimal.Decimal
}

// CategoryTax is the tax due on all lines of one category at one rate.
type CategoryTax struct {
	Category ProductCategory `json:"category"`
	Rate     decimal.Decimal `json:"rate"`
	Base     decimal.Decimal `json:"base"`
	Amount   decimal.Decimal `json:"amount"`
}

// Totals is the computed money summary of an invoice.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Taxes    []CategoryTax   `json:"taxes"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// LineTotal is qty × unit price rounded to cents.
func LineTotal(qty, unitPrice decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitPrice).Round(2)
}

// ComputeTotals sums line totals and, when taxIncluded is set, adds tax per
// (category, rate) group rounded to cents. It has no side effects.
func ComputeTotals(lines []TotalsLine, taxIncluded bool, rates TaxRates) Totals {
	type group struct {
		category ProductCategory
		rate     string
	}
	bases := map[group]decimal.Decimal{}
	keys := []group{}

	t := Totals{Subtotal: decimal.Zero, Tax: decimal.Zero, Taxes: []CategoryTax{}}
	for _, l := range lines {
		lt := LineTotal(l.Quantity, l.UnitPrice)
		t.Subtotal = t.Subtotal.Add(lt)

		rate := rates.Rate(l.Category)
		if l.TaxRate != nil {
			rate = *l.TaxRate
		}
		g := group{category: l.Category, rate: rate.StringFixed(2)}
		if _, ok := bases[g]; !ok {
			keys = append(keys, g)
		}
		bases[g] = bases[g].Add(lt)
	}

	if taxIncluded {
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].category != keys[j].category {
				return keys[i].category < keys[j].category
			}
			return keys[i].rate < keys[j].rate
		})
		for _, g := range keys {
			rate := decimal.RequireFromString(g.rate)
			amount := bases[g].Mul(rate).Div(hundred).Round(2)
			t.Taxes = append(t.Taxes, CategoryTax{Category: g.category, Rate: rate, Base: bases[g], Amount: amount})
			t.Tax = t.Tax.Add(amount)
		}
	}
	t.Total = t.Subtotal.Add(t.Tax)
	return t
}

// PaymentStatus is a label derived from a total and the sum paid against it.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPartial  PaymentStatus = "PARTIAL"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentOverpaid PaymentStatus = "OVERPAID"
)

func DerivePaymentStatus(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case paid.IsZero():
		return PaymentUnpaid
	case paid.GreaterThan(total):
		return PaymentOverpaid
	case paid.Equal(total):
		return PaymentPaid
	default:
		return PaymentPartial
	}
}
