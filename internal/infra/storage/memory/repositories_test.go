package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/domain/shared/daterange"
	"wheelshare/internal/domain/shared/money"
)

func storedBooking(t *testing.T, id string) *domainbooking.Booking {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	b, err := domainbooking.New(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		VehicleID: "v-1",
		RenterID:  "renter-1",
		HostID:    "host-1",
		Range:     dr,
		Total:     money.Must(50000, "ZAR"),
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return b
}

func TestBookingRepositoryVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository()

	b := storedBooking(t, "b-1")
	require.NoError(t, repo.Save(ctx, b))

	first, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	second, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)

	require.NoError(t, first.Approve("", time.Now()))
	require.NoError(t, repo.Save(ctx, first))

	// stale copy loses the race
	require.NoError(t, second.Cancel("", time.Now()))
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	got, err := repo.ByID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusApproved, got.Status)
}

func TestBookingRepositoryNotFound(t *testing.T) {
	repo := NewBookingRepository()
	_, err := repo.ByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestPaymentRepositoryUniqueReference(t *testing.T) {
	ctx := context.Background()
	repo := NewPaymentRepository()

	newPayment := func(id string) *domainpayment.Payment {
		p, err := domainpayment.New(domainpayment.CreateParams{
			ID:        domainpayment.PaymentID(id),
			BookingID: "b-1",
			RenterID:  "renter-1",
			HostID:    "host-1",
			Amount:    money.Must(50000, "ZAR"),
			Provider:  domainpayment.ProviderCard,
			CreatedAt: time.Now(),
		})
		require.NoError(t, err)
		return p
	}

	p1 := newPayment("p-1")
	require.NoError(t, p1.AttachProviderReference("pi_123"))
	require.NoError(t, repo.Save(ctx, p1))

	p2 := newPayment("p-2")
	require.NoError(t, p2.AttachProviderReference("pi_123"))
	err := repo.Save(ctx, p2)
	assert.ErrorIs(t, err, ErrDuplicateReference)

	got, err := repo.ByProviderReference(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, domainpayment.PaymentID("p-1"), got.ID)

	_, err = repo.ByProviderReference(ctx, "pi_999")
	assert.ErrorIs(t, err, domainpayment.ErrPaymentNotFound)
}
