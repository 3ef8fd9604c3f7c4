package payment

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayment(amount string) *Payment {
	return New("pay-1", "PLN", decimal.RequireFromString(amount))
}

func TestNewPayment(t *testing.T) {
	p := newPayment("100")

	assert.Equal(t, "pay-1", p.ID())
	assert.Equal(t, StatusNew, p.Status())
	assert.Equal(t, "PLN", p.Currency)
	assert.True(t, p.AmountRequired.Equal(decimal.RequireFromString("100")))
	assert.True(t, p.AmountPaid.IsZero())
	assert.Empty(t, p.ExternalID())
}

func TestPaymentHappyPathPull(t *testing.T) {
	p := newPayment("100")

	require.NoError(t, p.Fire(EventConfirmPrepared))
	assert.Equal(t, StatusPrepared, p.Status())

	require.NoError(t, p.Fire(EventConfirmPayment))
	assert.Equal(t, StatusCharged, p.Status())
	assert.True(t, p.AmountPaid.Equal(p.AmountRequired))

	require.NoError(t, p.Fire(EventMarkAsPaid))
	assert.Equal(t, StatusPaid, p.Status())
}

func TestPaymentPreAuthFlow(t *testing.T) {
	p := newPayment("250.50")

	require.NoError(t, p.Fire(EventConfirmLock))
	assert.Equal(t, StatusLocked, p.Status())
	assert.True(t, p.AmountLocked.Equal(decimal.RequireFromString("250.50")))

	require.NoError(t, p.Fire(EventConfirmPayment))
	assert.Equal(t, StatusCharged, p.Status())
	assert.True(t, p.AmountLocked.IsZero(), "capture releases the lock")
	assert.True(t, p.AmountPaid.Equal(decimal.RequireFromString("250.50")))
}

func TestPaymentIllegalTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *Payment)
		event Event
	}{
		{
			name:  "mark_as_paid from new",
			setup: func(p *Payment) {},
			event: EventMarkAsPaid,
		},
		{
			name: "confirm_prepared after lock",
			setup: func(p *Payment) {
				require.NoError(t, p.Fire(EventConfirmLock))
			},
			event: EventConfirmPrepared,
		},
		{
			name: "confirm_payment after paid",
			setup: func(p *Payment) {
				require.NoError(t, p.Fire(EventConfirmPayment))
				require.NoError(t, p.Fire(EventMarkAsPaid))
			},
			event: EventConfirmPayment,
		},
		{
			name: "confirm_refund before payment",
			setup: func(p *Payment) {},
			event: EventConfirmRefund,
		},
		{
			name: "mark_as_refunded from paid",
			setup: func(p *Payment) {
				require.NoError(t, p.Fire(EventConfirmPayment))
				require.NoError(t, p.Fire(EventMarkAsPaid))
			},
			event: EventMarkAsRefunded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPayment("100")
			tt.setup(p)

			before := p.Status()
			assert.False(t, p.CanFire(tt.event))

			err := p.Fire(tt.event)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTransitionNotAllowed))
			assert.Equal(t, before, p.Status(), "a rejected event must not change state")
		})
	}
}

func TestPaymentFailIsIdempotent(t *testing.T) {
	p := newPayment("100")

	require.NoError(t, p.Fire(EventFail))
	assert.Equal(t, StatusFailed, p.Status())

	// Repeated delivery of a cancellation lands on the self-loop.
	require.NoError(t, p.Fire(EventFail))
	assert.Equal(t, StatusFailed, p.Status())
}

func TestPaymentRefundLifecycle(t *testing.T) {
	p := newPayment("100")
	require.NoError(t, p.Fire(EventConfirmPayment))
	require.NoError(t, p.Fire(EventMarkAsPaid))

	require.NoError(t, p.Fire(EventConfirmRefund, decimal.RequireFromString("30")))
	assert.Equal(t, StatusPartiallyRefunded, p.Status())
	assert.True(t, p.AmountRefunded.Equal(decimal.RequireFromString("30")))

	assert.False(t, p.CanFire(EventMarkAsRefunded), "30 of 100 refunded")

	require.NoError(t, p.Fire(EventConfirmRefund, decimal.RequireFromString("70")))
	require.NoError(t, p.Fire(EventMarkAsRefunded))
	assert.Equal(t, StatusRefunded, p.Status())
}

func TestPaymentRefundLedger(t *testing.T) {
	p := newPayment("100")

	assert.False(t, p.RefundApplied("R1"))

	p.RecordRefund("R1")
	assert.True(t, p.RefundApplied("R1"))
	assert.Equal(t, []string{"R1"}, p.AppliedRefunds())

	// Repeats and empty ids leave the ledger unchanged.
	p.RecordRefund("R1")
	p.RecordRefund("")
	assert.Equal(t, []string{"R1"}, p.AppliedRefunds())
	assert.False(t, p.RefundApplied(""))

	p.RecordRefund("R2")
	assert.Equal(t, []string{"R1", "R2"}, p.AppliedRefunds())
}

func TestPaymentRefundRequiresAmount(t *testing.T) {
	p := newPayment("100")
	require.NoError(t, p.Fire(EventConfirmPayment))
	require.NoError(t, p.Fire(EventMarkAsPaid))

	err := p.Fire(EventConfirmRefund)
	require.Error(t, err)
	assert.Equal(t, StatusPaid, p.Status())
}

func TestPaymentCancelRefund(t *testing.T) {
	p := newPayment("100")
	require.NoError(t, p.Fire(EventConfirmPayment))
	require.NoError(t, p.Fire(EventMarkAsPaid))

	require.NoError(t, p.Fire(EventCancelRefund))
	assert.Equal(t, StatusCharged, p.Status())

	require.NoError(t, p.Fire(EventMarkAsPaid))
	assert.Equal(t, StatusPaid, p.Status())
}

func TestPaymentGuards(t *testing.T) {
	p := newPayment("100")
	require.NoError(t, p.Fire(EventConfirmPayment))

	assert.True(t, p.IsFullyPaid())
	assert.False(t, p.IsFullyRefunded(), "nothing refunded yet")

	p.AmountRefunded = decimal.RequireFromString("100")
	assert.True(t, p.IsFullyRefunded())
}

func TestPaymentIsFullyRefundedNeedsPayment(t *testing.T) {
	p := newPayment("100")

	// Zero paid and zero refunded must not count as fully refunded.
	assert.False(t, p.IsFullyRefunded())
}

func TestPaymentExternalID(t *testing.T) {
	p := newPayment("100")

	require.NoError(t, p.SetExternalID("PAYU-ORDER-1"))
	assert.Equal(t, "PAYU-ORDER-1", p.ExternalID())

	// Same value again is a no-op.
	require.NoError(t, p.SetExternalID("PAYU-ORDER-1"))

	err := p.SetExternalID("PAYU-ORDER-2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalIDAssigned))
	assert.Equal(t, "PAYU-ORDER-1", p.ExternalID())
}

func TestRestore(t *testing.T) {
	p := Restore("pay-9", StatusLocked)

	assert.Equal(t, "pay-9", p.ID())
	assert.Equal(t, StatusLocked, p.Status())

	p.SetStatus(StatusCharged)
	assert.Equal(t, StatusCharged, p.Status())
}
