package core_test

import (
	"context"
	"testing"

	"github.com/fodouopn/gsa-manager/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validatedInvoice returns a tax-free validated invoice of qty × 10.00.
func (f *fixture) validatedInvoice(t *testing.T, clientID int, qty string) *core.Invoice {
	t.Helper()
	p := f.product(t, "Pils "+qty, core.CategoryBeer, "10.00")
	f.stockUp(t, p.ID, qty)
	inv := f.draftInvoice(t, clientID, p.ID, qty)
	inv, err := f.invoices.Validate(context.Background(), inv.ID)
	require.NoError(t, err)
	return inv
}

func TestPayment_OverpaymentMovesToOwed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	inv := f.validatedInvoice(t, c.ID, "10")
	require.True(t, inv.Totals.Total.Equal(dec("100.00")))

	_, err := f.payments.RecordPayment(ctx, inv.ID, core.PaymentInput{Amount: dec("60.00"), Method: core.MethodCash})
	require.NoError(t, err)

	bal, err := f.payments.InvoiceBalance(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentPartial, bal.PaymentState)
	assert.True(t, bal.Balance.Equal(dec("40.00")))

	due, err := f.payments.ClientTotalDue(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, due.Equal(dec("40.00")))

	_, err = f.payments.RecordPayment(ctx, inv.ID, core.PaymentInput{Amount: dec("50.00"), Method: core.MethodTransfer, Reference: "VIR-88"})
	require.NoError(t, err)

	bal, err = f.payments.InvoiceBalance(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, core.PaymentOverpaid, bal.PaymentState)
	assert.True(t, bal.Balance.Equal(dec("-10.00")))

	due, err = f.payments.ClientTotalDue(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, due.IsZero())

	owed, err := f.payments.ClientTotalOwed(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, owed.Amount(core.OwedInvoiceOverpayments).Equal(dec("10.00")))
	assert.True(t, owed.Total().Equal(dec("10.00")))

	payments, err := f.payments.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "VIR-88", payments[1].Reference)
}

func TestPayment_RejectsDraftAndBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Chez Paul")
	p := f.product(t, "Orange 1L", core.CategoryJuice, "2.00")
	f.stockUp(t, p.ID, "5")
	draft := f.draftInvoice(t, c.ID, p.ID, "2")

	_, err := f.payments.RecordPayment(ctx, draft.ID, core.PaymentInput{Amount: dec("4.00"), Method: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)

	_, err = f.payments.RecordPayment(ctx, draft.ID, core.PaymentInput{Amount: dec("0"), Method: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.payments.RecordPayment(ctx, 9999, core.PaymentInput{Amount: dec("1.00"), Method: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreditNote_RefundsReduceOutstanding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")

	cn, err := f.payments.IssueCreditNote(ctx, core.CreditNoteInput{ClientID: c.ID, Amount: dec("30.00"), Reason: "returned crates"})
	require.NoError(t, err)
	assert.True(t, cn.Outstanding.Equal(dec("30.00")))

	cn, err = f.payments.RefundCreditNote(ctx, cn.ID, core.RefundInput{Amount: dec("12.50"), Method: core.MethodCash})
	require.NoError(t, err)
	assert.True(t, cn.Refunded.Equal(dec("12.50")))
	assert.True(t, cn.Outstanding.Equal(dec("17.50")))
	assert.Len(t, cn.Refunds, 1)

	_, err = f.payments.RefundCreditNote(ctx, cn.ID, core.RefundInput{Amount: dec("17.51"), Method: core.MethodCash})
	assert.ErrorIs(t, err, core.ErrValidation)

	owed, err := f.payments.ClientTotalOwed(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, owed.Amount(core.OwedCreditNotes).Equal(dec("17.50")))

	// Credit never reduces what the client owes on invoices.
	f.validatedInvoice(t, c.ID, "3")
	due, err := f.payments.ClientTotalDue(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, due.Equal(dec("30.00")))

	notes, err := f.payments.ListCreditNotes(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestCreditNote_FromInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.client(t, "Bar du Port")
	other := f.client(t, "Chez Paul")
	inv := f.validatedInvoice(t, c.ID, "4")

	cn, err := f.payments.CreditNoteFromInvoice(ctx, inv.ID, "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, cn.ClientID)
	require.NotNil(t, cn.OriginInvoiceID)
	assert.Equal(t, inv.ID, *cn.OriginInvoiceID)
	assert.True(t, cn.Amount.Equal(dec("40.00")))
	assert.Contains(t, cn.Reason, inv.Number)

	_, err = f.payments.IssueCreditNote(ctx, core.CreditNoteInput{
		ClientID: other.ID, Amount: dec("5.00"), OriginInvoiceID: &inv.ID,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	p := f.product(t, "Orange 1L", core.CategoryJuice, "2.00")
	f.stockUp(t, p.ID, "2")
	draft := f.draftInvoice(t, c.ID, p.ID, "1")
	_, err = f.payments.CreditNoteFromInvoice(ctx, draft.ID, "")
	assert.ErrorIs(t, err, core.ErrInvalidStateTransition)
}

func TestReceivablesAndStatement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	small := f.client(t, "Chez Paul")
	big := f.client(t, "Bar du Port")
	settled := f.client(t, "Hotel Central")

	f.validatedInvoice(t, small.ID, "2")
	f.validatedInvoice(t, big.ID, "5")
	paid := f.validatedInvoice(t, settled.ID, "1")
	_, err := f.payments.RecordPayment(ctx, paid.ID, core.PaymentInput{Amount: dec("10.00"), Method: core.MethodCard})
	require.NoError(t, err)

	recv, err := f.payments.Receivables(ctx)
	require.NoError(t, err)
	require.Len(t, recv, 2)
	assert.Equal(t, big.ID, recv[0].ClientID)
	assert.True(t, recv[0].Due.Equal(dec("50.00")))
	assert.Equal(t, small.ID, recv[1].ClientID)
	assert.Equal(t, 1, recv[1].InvoiceCount)

	_, err = f.payments.IssueCreditNote(ctx, core.CreditNoteInput{ClientID: big.ID, Amount: dec("8.00"), Reason: "promo"})
	require.NoError(t, err)

	st, err := f.payments.ClientStatement(ctx, big.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bar du Port", st.Client.Name)
	assert.True(t, st.Due.Equal(dec("50.00")))
	assert.True(t, st.OwedTotal.Equal(dec("8.00")))
	assert.True(t, st.Net.Equal(dec("42.00")))
	assert.Len(t, st.Invoices, 1)
	assert.Len(t, st.CreditNotes, 1)
}
