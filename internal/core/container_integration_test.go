package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_ReconcileAndValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pils := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")
	blonde := f.product(t, "Blonde 50cl", core.CategoryBeer, "1.65")
	orange := f.product(t, "Orange 1L", core.CategoryJuice, "2.40")

	c, err := f.containers.Create(ctx, core.ContainerInput{Ref: "MSKU123", EstimatedArrival: time.Now().AddDate(0, 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, core.ContainerPlanned, c.Status)

	c, err = f.containers.AddManifestLine(ctx, c.ID, pils.ID, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, core.ContainerInProgress, c.Status)
	_, err = f.containers.AddManifestLine(ctx, c.ID, blonde.ID, dec("50"))
	require.NoError(t, err)

	_, err = f.containers.AddReceivedLine(ctx, c.ID, core.ReceivedLineInput{
		ProductID: pils.ID, ReceivedQty: dec("98"), BreakageQty: dec("2"), Comment: "two crates crushed",
	})
	require.NoError(t, err)
	_, err = f.containers.AddReceivedLine(ctx, c.ID, core.ReceivedLineInput{ProductID: blonde.ID, ReceivedQty: dec("50")})
	require.NoError(t, err)
	_, err = f.containers.AddReceivedLine(ctx, c.ID, core.ReceivedLineInput{ProductID: orange.ID, ReceivedQty: dec("12")})
	require.NoError(t, err)

	report, err := f.containers.Reconcile(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, report, 3)
	kinds := map[int]core.DiscrepancyKind{}
	for _, d := range report {
		kinds[d.ProductID] = d.Kind
	}
	assert.Equal(t, core.DiscrepancyShort, kinds[pils.ID])
	assert.Equal(t, core.DiscrepancyMatch, kinds[blonde.ID])
	assert.Equal(t, core.DiscrepancyOver, kinds[orange.ID])

	c, err = f.containers.Validate(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ContainerValidated, c.Status)
	require.NotNil(t, c.ValidatedAt)

	// Received quantities reach stock; breakage is informational.
	assert.True(t, f.balance(t, pils.ID).Equal(dec("98")))
	assert.True(t, f.balance(t, blonde.ID).Equal(dec("50")))
	assert.True(t, f.balance(t, orange.ID).Equal(dec("12")))

	hist, err := f.stock.History(ctx, core.MovementFilter{Type: core.MovementReception})
	require.NoError(t, err)
	require.Equal(t, 3, hist.Total)
	for _, m := range hist.Items {
		assert.Equal(t, "CONT-MSKU123", m.Reference)
	}

	recs := f.audits.byAction("container.validate")
	require.Len(t, recs, 1)
	before, ok := recs[0].Before.(*core.Container)
	require.True(t, ok)
	assert.Equal(t, core.ContainerInProgress, before.Status)
	assert.Len(t, before.Manifest, 2)
	assert.Len(t, before.Received, 3)
	after, ok := recs[0].After.(*core.Container)
	require.True(t, ok)
	assert.Equal(t, core.ContainerValidated, after.Status)
	assert.Len(t, after.Received, 3)

	_, err = f.containers.Validate(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
	_, err = f.containers.AddManifestLine(ctx, c.ID, pils.ID, dec("1"))
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
	assert.True(t, f.balance(t, pils.ID).Equal(dec("98")))
}

func TestContainer_ValidateNeedsReceivedLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")

	c, err := f.containers.Create(ctx, core.ContainerInput{Ref: "TGHU998", EstimatedArrival: time.Now()})
	require.NoError(t, err)
	_, err = f.containers.AddManifestLine(ctx, c.ID, p.ID, dec("10"))
	require.NoError(t, err)

	_, err = f.containers.Validate(ctx, c.ID)
	assert.ErrorIs(t, err, core.ErrValidation)

	c, err = f.containers.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ContainerInProgress, c.Status)
	assert.True(t, f.balance(t, p.ID).IsZero())
}

func TestContainer_CreateRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.containers.Create(ctx, core.ContainerInput{Ref: "MSKU1"})
	assert.ErrorIs(t, err, core.ErrValidation, "estimated arrival is required")

	_, err = f.containers.Create(ctx, core.ContainerInput{Ref: "MSKU1", EstimatedArrival: time.Now()})
	require.NoError(t, err)
	_, err = f.containers.Create(ctx, core.ContainerInput{Ref: "MSKU1", EstimatedArrival: time.Now()})
	assert.ErrorIs(t, err, core.ErrValidation, "refs are unique")

	_, err = f.containers.Get(ctx, 9999)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
