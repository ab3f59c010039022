package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onDate(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSalesBuckets(t *testing.T) {
	tests := []struct {
		name   string
		from   string
		to     string
		period SalesPeriod
		labels []string
		lastTo string
	}{
		{"days", "2026-03-30", "2026-04-02", SalesByDay, []string{"2026-03-30", "2026-03-31", "2026-04-01", "2026-04-02"}, "2026-04-02"},
		{"weeks clipped", "2026-03-01", "2026-03-16", SalesByWeek, []string{"2026-03-01", "2026-03-08", "2026-03-15"}, "2026-03-16"},
		{"months from mid-month", "2026-01-15", "2026-03-10", SalesByMonth, []string{"2026-01", "2026-02", "2026-03"}, "2026-03-10"},
		{"year end", "2026-12-20", "2027-01-05", SalesByMonth, []string{"2026-12", "2027-01"}, "2027-01-05"},
		{"single day", "2026-05-05", "2026-05-05", SalesByMonth, []string{"2026-05"}, "2026-05-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := salesBuckets(onDate(tt.from), onDate(tt.to), tt.period)
			require.Len(t, b, len(tt.labels))
			for i, l := range tt.labels {
				assert.Equal(t, l, b[i].Label)
				assert.True(t, b[i].Revenue.IsZero())
			}
			assert.Equal(t, onDate(tt.from), b[0].Start)
			assert.Equal(t, onDate(tt.lastTo), b[len(b)-1].End)
			for i := 1; i < len(b); i++ {
				assert.Equal(t, b[i-1].End.AddDate(0, 0, 1), b[i].Start, "buckets are contiguous")
			}
		})
	}
}

func TestFillBuckets(t *testing.T) {
	b := salesBuckets(onDate("2026-01-01"), onDate("2026-02-28"), SalesByMonth)
	at := func(s string) *time.Time {
		v := onDate(s).Add(15 * time.Hour)
		return &v
	}
	invoices := []*Invoice{
		{ValidatedAt: at("2026-01-31"), Totals: Totals{Total: d("12.00")}},
		{ValidatedAt: at("2026-02-01"), Totals: Totals{Total: d("30.50")}},
		{ValidatedAt: at("2026-02-28"), Totals: Totals{Total: d("9.50")}},
		{Totals: Totals{Total: d("99.00")}},
	}
	fillBuckets(b, invoices)

	assert.Equal(t, "12.00", b[0].Revenue.StringFixed(2))
	assert.Equal(t, 1, b[0].InvoiceCount)
	assert.Equal(t, "40.00", b[1].Revenue.StringFixed(2))
	assert.Equal(t, 2, b[1].InvoiceCount)
}

func TestSalesQuery_Normalize(t *testing.T) {
	q, err := SalesQuery{From: onDate("2026-01-01").Add(13 * time.Hour), To: onDate("2026-01-31")}.normalize()
	require.NoError(t, err)
	assert.Equal(t, SalesByMonth, q.Period)
	assert.Equal(t, onDate("2026-01-01"), q.From)

	_, err = SalesQuery{From: onDate("2026-02-01"), To: onDate("2026-01-01")}.normalize()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = SalesQuery{To: onDate("2026-01-01")}.normalize()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = SalesQuery{From: onDate("2026-01-01"), To: onDate("2026-01-02"), Period: "quarter"}.normalize()
	assert.ErrorIs(t, err, ErrValidation)

	_, err = SalesQuery{From: onDate("2025-01-01"), To: onDate("2026-06-01"), Period: SalesByDay}.normalize()
	assert.ErrorIs(t, err, ErrValidation)
	_, err = SalesQuery{From: onDate("2025-01-01"), To: onDate("2026-06-01"), Period: SalesByWeek}.normalize()
	assert.NoError(t, err)
}

func TestRankReceivables(t *testing.T) {
	invoices := []*Invoice{
		{ClientID: 1, ClientName: "Chez Paul", Balance: d("20.00")},
		{ClientID: 2, ClientName: "Bar du Port", Balance: d("15.00")},
		{ClientID: 2, ClientName: "Bar du Port", Balance: d("15.00")},
		{ClientID: 3, ClientName: "Hotel Central", Balance: d("-5.00")},
		{ClientID: 1, ClientName: "Chez Paul", Balance: d("0")},
	}
	r := rankReceivables(invoices)
	require.Len(t, r, 2)
	assert.Equal(t, 2, r[0].ClientID)
	assert.Equal(t, "30.00", r[0].Due.StringFixed(2))
	assert.Equal(t, 2, r[0].InvoiceCount)
	assert.Equal(t, 1, r[1].ClientID)
	assert.Equal(t, 1, r[1].InvoiceCount)
}
