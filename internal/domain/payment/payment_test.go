package payment

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := New(CreateParams{
		ID:        "p-1",
		BookingID: "b-1",
		RenterID:  "renter-1",
		HostID:    "host-1",
		Amount:    money.Must(50000, "ZAR"),
		Provider:  ProviderCard,
		CreatedAt: time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return p
}

func TestComplete(t *testing.T) {
	now := time.Date(2024, 4, 1, 11, 0, 0, 0, time.UTC)

	t.Run("pending completes once", func(t *testing.T) {
		p := newTestPayment(t)
		require.NoError(t, p.Complete(now))
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, now, p.ProcessedAt)

		events := p.PendingEvents()
		require.Len(t, events, 1)
		assert.Equal(t, "payment.received", events[0].EventName())
	})

	t.Run("second completion is already processed", func(t *testing.T) {
		p := newTestPayment(t)
		require.NoError(t, p.Complete(now))
		p.ClearEvents()

		err := p.Complete(now)
		require.ErrorIs(t, err, ErrAlreadyProcessed)
		assert.Empty(t, p.PendingEvents(), "a replay must not re-emit events")
	})

	t.Run("failed payment cannot complete", func(t *testing.T) {
		p := newTestPayment(t)
		require.NoError(t, p.Fail(now))
		err := p.Complete(now)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrAlreadyProcessed))
	})
}

func TestRefund(t *testing.T) {
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	completed := func(t *testing.T) *Payment {
		p := newTestPayment(t)
		require.NoError(t, p.Complete(now))
		p.ClearEvents()
		return p
	}

	t.Run("full refund", func(t *testing.T) {
		p := completed(t)
		require.NoError(t, p.Refund(money.Must(50000, "ZAR"), "trip cancelled", now))
		assert.Equal(t, StatusRefunded, p.Status)
		assert.Equal(t, int64(50000), p.RefundAmount.Amount)
	})

	t.Run("partial refund also sets refunded", func(t *testing.T) {
		p := completed(t)
		require.NoError(t, p.Refund(money.Must(10000, "ZAR"), "late pickup", now))
		assert.Equal(t, StatusRefunded, p.Status)
		assert.Equal(t, "late pickup", p.RefundReason)
	})

	t.Run("refund above amount rejected", func(t *testing.T) {
		p := completed(t)
		err := p.Refund(money.Must(50001, "ZAR"), "", now)
		require.Error(t, err)
		assert.Equal(t, StatusCompleted, p.Status)
	})

	t.Run("currency mismatch rejected", func(t *testing.T) {
		p := completed(t)
		err := p.Refund(money.Must(100, "USD"), "", now)
		assert.Error(t, err)
	})

	t.Run("pending payment cannot refund", func(t *testing.T) {
		p := newTestPayment(t)
		err := p.Refund(money.Must(100, "ZAR"), "", now)
		assert.True(t, fault.IsKind(err, fault.KindInvalidTransition))
	})
}

func TestStartRefund(t *testing.T) {
	now := time.Date(2024, 4, 2, 9, 0, 0, 0, time.UTC)

	completed := func(t *testing.T) *Payment {
		p := newTestPayment(t)
		require.NoError(t, p.Complete(now))
		p.ClearEvents()
		return p
	}

	t.Run("claims without leaving completed", func(t *testing.T) {
		p := completed(t)
		require.NoError(t, p.StartRefund(money.Must(50000, "ZAR"), "trip cancelled", now))
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Equal(t, now, p.RefundRequestedAt)
	})

	t.Run("second claim conflicts", func(t *testing.T) {
		p := completed(t)
		require.NoError(t, p.StartRefund(money.Must(50000, "ZAR"), "", now))
		err := p.StartRefund(money.Must(50000, "ZAR"), "", now)
		assert.True(t, fault.IsKind(err, fault.KindConflict))
	})

	t.Run("abort releases the claim", func(t *testing.T) {
		p := completed(t)
		require.NoError(t, p.StartRefund(money.Must(50000, "ZAR"), "", now))
		require.NoError(t, p.AbortRefund())
		assert.True(t, p.RefundRequestedAt.IsZero())
		require.NoError(t, p.StartRefund(money.Must(10000, "ZAR"), "retry", now))
	})

	t.Run("amount above original rejected before any claim", func(t *testing.T) {
		p := completed(t)
		err := p.StartRefund(money.Must(50001, "ZAR"), "", now)
		assert.True(t, fault.IsKind(err, fault.KindValidation))
		assert.True(t, p.RefundRequestedAt.IsZero())
	})

	t.Run("abort without a claim rejected", func(t *testing.T) {
		p := completed(t)
		err := p.AbortRefund()
		assert.True(t, fault.IsKind(err, fault.KindInvalidTransition))
	})
}

func TestAttachProviderReference(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.AttachProviderReference("pi_123"))
	assert.Equal(t, "pi_123", p.ProviderReference)

	err := p.AttachProviderReference("pi_456")
	assert.Error(t, err, "reference is write-once")
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("card")
	require.NoError(t, err)
	assert.Equal(t, ProviderCard, p)

	_, err = ParseProvider("cheque")
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}
