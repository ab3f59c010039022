package core_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoice_NumberingAndPriceFreeze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")
	f.stockUp(t, p.ID, "100")

	_, err := f.pricing.SetClientPrice(ctx, c.ID, p.ID, dec("1.05"))
	require.NoError(t, err)

	inv, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: c.ID, Type: core.InvoicePickup})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^GSA-\d{4}-\d{6}$`), inv.Number)
	assert.Equal(t, core.InvoiceDraft, inv.Status)

	inv, err = f.invoices.AddLine(ctx, inv.ID, p.ID, dec("10"))
	require.NoError(t, err)
	require.Len(t, inv.Lines, 1)
	assert.True(t, inv.Lines[0].UnitPrice.Equal(dec("1.05")))

	// Later price changes do not reach an existing line.
	_, err = f.pricing.SetClientPrice(ctx, c.ID, p.ID, dec("1.50"))
	require.NoError(t, err)
	inv, err = f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, inv.Lines[0].UnitPrice.Equal(dec("1.05")))

	second, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: c.ID, Type: core.InvoiceDelivery})
	require.NoError(t, err)
	assert.NotEqual(t, inv.Number, second.Number)
}

func TestInvoice_NoPriceDefined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Chez Paul")
	prod, err := f.catalog.CreateProduct(ctx, core.ProductInput{
		Name: "Unpriced", SaleUnit: core.UnitCase, Category: core.CategoryJuice, IsActive: true,
	})
	require.NoError(t, err)
	f.stockUp(t, prod.ID, "5")

	inv, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: c.ID, Type: core.InvoiceDelivery})
	require.NoError(t, err)
	_, err = f.invoices.AddLine(ctx, inv.ID, prod.ID, dec("1"))
	assert.ErrorIs(t, err, core.ErrNoPriceDefined)
}

func TestInvoice_SoftCheckCountsDraftQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Chez Paul")
	p := f.product(t, "Orange 1L", core.CategoryJuice, "2.40")
	f.stockUp(t, p.ID, "10")

	inv := f.draftInvoice(t, c.ID, p.ID, "6")
	_, err := f.invoices.AddLine(ctx, inv.ID, p.ID, dec("5"))
	assert.ErrorIs(t, err, core.ErrInsufficientStock)

	// Editing the existing line excludes its own quantity.
	inv, err = f.invoices.UpdateLineQty(ctx, inv.ID, inv.Lines[0].ID, dec("10"))
	require.NoError(t, err)
	assert.True(t, inv.Lines[0].Quantity.Equal(dec("10")))

	// Drafts never move stock.
	assert.True(t, f.balance(t, p.ID).Equal(dec("10")))
}

func TestInvoice_ValidationIsAtomicAgainstStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "10")

	a := f.draftInvoice(t, c.ID, p.ID, "7")
	b := f.draftInvoice(t, c.ID, p.ID, "6")

	a, err := f.invoices.Validate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceValidated, a.Status)
	assert.True(t, f.balance(t, p.ID).Equal(dec("3")))

	_, err = f.invoices.Validate(ctx, b.ID)
	var stockErr *core.InsufficientStockError
	require.True(t, errors.As(err, &stockErr), "got %v", err)
	assert.True(t, stockErr.Available.Equal(dec("3")))
	assert.True(t, stockErr.Requested.Equal(dec("6")))

	b, err = f.invoices.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceDraft, b.Status)
	assert.Len(t, b.Lines, 1)
	assert.Nil(t, b.Lines[0].TaxRate)
	assert.True(t, f.balance(t, p.ID).Equal(dec("3")))

	hist, err := f.stock.History(ctx, core.MovementFilter{ProductID: p.ID, Type: core.MovementSale})
	require.NoError(t, err)
	require.Equal(t, 1, hist.Total)
	assert.Equal(t, a.Number, hist.Items[0].Reference)
	assert.True(t, hist.Items[0].Quantity.Equal(dec("-7")))
}

func TestInvoice_ValidateFreezesTaxAndLocksEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	beer := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	juice := f.product(t, "Orange 1L", core.CategoryJuice, "2.00")
	f.stockUp(t, beer.ID, "10")
	f.stockUp(t, juice.ID, "10")

	inv, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: c.ID, Type: core.InvoiceDelivery})
	require.NoError(t, err)
	require.True(t, inv.TaxIncluded)
	_, err = f.invoices.AddLine(ctx, inv.ID, beer.ID, dec("3"))
	require.NoError(t, err)
	_, err = f.invoices.AddLine(ctx, inv.ID, juice.ID, dec("5"))
	require.NoError(t, err)

	inv, err = f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)
	for _, l := range inv.Lines {
		require.NotNil(t, l.TaxRate)
	}
	// 30.00 + 6.00 tax, 10.00 + 0.55 tax
	assert.True(t, inv.Totals.Subtotal.Equal(dec("40.00")))
	assert.True(t, inv.Totals.Tax.Equal(dec("6.55")))
	assert.True(t, inv.Totals.Total.Equal(dec("46.55")))
	require.NotNil(t, inv.ReminderDate)

	_, err = f.invoices.AddLine(ctx, inv.ID, beer.ID, dec("1"))
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
	_, err = f.invoices.ToggleTaxIncluded(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
	_, err = f.invoices.Validate(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func TestInvoice_EmptyDraftCannotValidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Chez Paul")

	inv, err := f.invoices.Create(ctx, core.InvoiceInput{ClientID: c.ID, Type: core.InvoiceDelivery})
	require.NoError(t, err)
	_, err = f.invoices.Validate(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestInvoice_ContestAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "2")
	_, err := f.invoices.Contest(ctx, inv.ID, core.ContestInput{Reason: "wrong quantity"})
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition, "drafts cannot be contested")

	_, err = f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)

	inv, err = f.invoices.Contest(ctx, inv.ID, core.ContestInput{Reason: "wrong quantity", Name: "Paul"})
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceContested, inv.Status)
	require.NotNil(t, inv.Contestation)
	assert.Equal(t, "wrong quantity", inv.Contestation.Reason)

	inv, err = f.invoices.ResolveContestation(ctx, inv.ID, "two cases confirmed by driver")
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceValidated, inv.Status)
}

func TestInvoice_DueReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "2")
	_, err := f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)

	due, err := f.invoices.DueReminders(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)

	yesterday := time.Now().AddDate(0, 0, -1)
	_, err = f.invoices.PostponeReminder(ctx, inv.ID, yesterday)
	require.NoError(t, err)

	due, err = f.invoices.DueReminders(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, inv.ID, due[0].ID)

	// A settled invoice needs no reminder.
	_, err = f.payments.RecordPayment(ctx, inv.ID, core.PaymentInput{Amount: dec("20.00"), Method: core.MethodCash})
	require.NoError(t, err)
	due, err = f.invoices.DueReminders(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestInvoice_AcceptanceTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "1")
	_, err := f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition, "drafts cannot be sent for acceptance")

	inv, err = f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)

	tok, err := f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)

	summary, err := f.invoices.AcceptanceSummary(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.Number, summary.Number)

	acc, err := f.invoices.AcceptViaToken(ctx, tok.Token, "Paul Martin")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, acc.InvoiceID)
	assert.Equal(t, "Paul Martin", acc.AcceptedBy)

	_, err = f.invoices.AcceptViaToken(ctx, tok.Token, "Paul Martin")
	assert.ErrorIs(t, err, core.ErrTokenAlreadyUsed)

	inv, err = f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceValidated, inv.Status)
	require.NotNil(t, inv.Acceptance)

	_, err = f.invoices.AcceptViaToken(ctx, "not-a-token", "x")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvoice_AcceptanceTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "1")
	_, err := f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)
	tok, err := f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	require.NoError(t, err)

	_, err = f.pool.Exec(ctx,
		"UPDATE acceptance_tokens SET expires_at = NOW() - INTERVAL '1 hour' WHERE invoice_id = $1", inv.ID)
	require.NoError(t, err)

	_, err = f.invoices.AcceptanceSummary(ctx, tok.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
	_, err = f.invoices.AcceptViaToken(ctx, tok.Token, "Paul")
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestInvoice_ClientContestsThroughAcceptanceLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "2")
	_, err := f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)
	tok, err := f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	require.NoError(t, err)

	// Accepting first does not close the link for a later dispute.
	_, err = f.invoices.AcceptViaToken(ctx, tok.Token, "Paul Martin")
	require.NoError(t, err)

	_, err = f.invoices.ContestViaToken(ctx, tok.Token, core.ContestInput{Name: "Paul"})
	assert.ErrorIs(t, err, core.ErrValidation, "a reason is required")

	inv, err = f.invoices.ContestViaToken(ctx, tok.Token, core.ContestInput{
		Reason: "one case missing", Name: "Paul Martin", Email: "paul@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceContested, inv.Status)
	require.NotNil(t, inv.Contestation)
	assert.Equal(t, "one case missing", inv.Contestation.Reason)
	assert.Equal(t, "paul@example.com", inv.Contestation.Email)

	recs := f.audits.byAction("invoice.contest")
	require.Len(t, recs, 1)
	assert.Equal(t, "acceptance-link", recs[0].Actor)

	_, err = f.invoices.ContestViaToken(ctx, tok.Token, core.ContestInput{Reason: "again"})
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)

	// A contested invoice gets no new acceptance link.
	_, err = f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)

	_, err = f.invoices.ContestViaToken(ctx, "not-a-token", core.ContestInput{Reason: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestInvoice_ExpiredLinkCannotContest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "1")
	_, err := f.invoices.Validate(ctx, inv.ID)
	require.NoError(t, err)
	tok, err := f.invoices.IssueAcceptanceToken(ctx, inv.ID)
	require.NoError(t, err)
	_, err = f.pool.Exec(ctx,
		"UPDATE acceptance_tokens SET expires_at = NOW() - INTERVAL '1 hour' WHERE invoice_id = $1", inv.ID)
	require.NoError(t, err)

	_, err = f.invoices.ContestViaToken(ctx, tok.Token, core.ContestInput{Reason: "late dispute"})
	assert.ErrorIs(t, err, core.ErrTokenExpired)

	inv, err = f.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceValidated, inv.Status)
}

func TestInvoice_CancelledDraftTakesNoPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Chez Paul")
	p := f.product(t, "Pils 33cl", core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, "5")

	inv := f.draftInvoice(t, c.ID, p.ID, "2")
	inv, err := f.invoices.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.InvoiceCancelled, inv.Status)
	assert.True(t, f.balance(t, p.ID).Equal(dec("5")))

	_, err = f.payments.RecordPayment(ctx, inv.ID, core.PaymentInput{Amount: dec("5.00"), Method: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func TestInvoice_ConcurrentValidationsShareStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	pils := f.product(t, "Pils 33cl", core.CategoryBeer, "1.20")
	blonde := f.product(t, "Blonde 50cl", core.CategoryBeer, "1.65")
	f.stockUp(t, pils.ID, "10")
	f.stockUp(t, blonde.ID, "10")

	// Eight drafts of 3 + 3; stock covers three. Half list the products in
	// the opposite order so their row locks would cross without ordering.
	const drafts = 8
	ids := make([]int, drafts)
	for i := range ids {
		first, second := pils.ID, blonde.ID
		if i%2 == 1 {
			first, second = blonde.ID, pils.ID
		}
		inv := f.draftInvoice(t, c.ID, first, "3")
		inv, err := f.invoices.AddLine(ctx, inv.ID, second, dec("3"))
		require.NoError(t, err)
		require.Len(t, inv.Lines, 2)
		ids[i] = inv.ID
	}

	errs := make([]error, drafts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, id := range ids {
		i, id := i, id
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = f.invoices.Validate(ctx, id)
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	close(start)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("concurrent validations did not finish")
	}

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, core.ErrInsufficientStock)
	}
	assert.Equal(t, 3, ok)
	assert.True(t, f.balance(t, pils.ID).Equal(dec("1")))
	assert.True(t, f.balance(t, blonde.ID).Equal(dec("1")))

	validated, err := f.invoices.List(ctx, core.InvoiceFilter{Status: core.InvoiceValidated})
	require.NoError(t, err)
	assert.Equal(t, 3, validated.Total)
}
