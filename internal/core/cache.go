package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceCache holds derived stock balances keyed by product. Entries are
// invalidated after every committed posting; a miss always falls back to the
// movement history, so the cache never participates in the negative-stock guard.
//
// Each product carries a generation that Invalidate advances. A reader takes the
// generation before computing a balance and passes it to Set, which drops the
// write if an invalidation happened in between.
type BalanceCache interface {
	Get(ctx context.Context, productID int) (decimal.Decimal, bool)
	Generation(ctx context.Context, productID int) int64
	Set(ctx context.Context, productID int, qty decimal.Decimal, generation int64)
	Invalidate(ctx context.Context, productIDs ...int)
}

type nopBalanceCache struct{}

func (nopBalanceCache) Get(context.Context, int) (decimal.Decimal, bool) { return decimal.Zero, false }
func (nopBalanceCache) Generation(context.Context, int) int64            { return 0 }
func (nopBalanceCache) Set(context.Context, int, decimal.Decimal, int64) {}
func (nopBalanceCache) Invalidate(context.Context, ...int)               {}

// NopBalanceCache never stores anything.
func NopBalanceCache() BalanceCache { return nopBalanceCache{} }
