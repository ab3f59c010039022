package core_test

import (
	"context"
	"testing"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricing_OverrideThenBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")

	price, err := f.pricing.Resolve(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("1.20")))

	_, err = f.pricing.SetClientPrice(ctx, c.ID, p.ID, dec("0.95"))
	require.NoError(t, err)
	price, err = f.pricing.Resolve(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("0.95")))

	prices, err := f.pricing.ListClientPrices(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, prices, 1)

	require.NoError(t, f.pricing.RemoveClientPrice(ctx, c.ID, p.ID))
	price, err = f.pricing.Resolve(ctx, c.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(dec("1.20")))

	_, err = f.pricing.SetClientPrice(ctx, c.ID, p.ID, dec("-1"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPricing_BasePriceFrozenOnceSold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")
	f.stockUp(t, p.ID, "10")

	_, err := f.pricing.SetBasePrice(ctx, p.ID, dec("1.25"))
	require.NoError(t, err)
	hist, err := f.pricing.PriceHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 2)

	inv := f.draftInvoice(t, c.ID, p.ID, "2")
	_, err = f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.pricing.SetBasePrice(ctx, p.ID, dec("1.40"))
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)

	_, err = f.catalog.UpdateProduct(ctx, p.ID, core.ProductInput{
		Name: "Pils 33cl", SaleUnit: core.UnitBottle, Category: core.CategoryJuice, IsActive: true,
	})
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)

	// Client overrides remain the way to reprice a sold product.
	_, err = f.pricing.SetClientPrice(ctx, c.ID, p.ID, dec("1.40"))
	assert.NoError(t, err)
}
