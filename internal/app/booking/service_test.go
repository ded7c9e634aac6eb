package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/infra/storage/memory"
)

type fixture struct {
	svc     *Service
	catalog *memory.VehicleCatalog
	outbox  *memory.Outbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog := memory.NewVehicleCatalog()
	catalog.Put(memory.Vehicle{ID: "v-1", OwnerID: "host-1", Bookable: true})
	catalog.Put(memory.Vehicle{ID: "v-2", OwnerID: "host-2", Bookable: true})
	box := memory.NewOutbox()
	svc := NewService(memory.Factory{
		BookingRepo: memory.NewBookingRepository(),
		PaymentRepo: memory.NewPaymentRepository(),
	}, catalog, box)
	svc.now = func() time.Time { return time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, catalog: catalog, outbox: box}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func request(vehicleID string, start, end time.Time) RequestParams {
	return RequestParams{
		VehicleID: vehicleID,
		RenterID:  "renter-1",
		Start:     start,
		End:       end,
		Total:     50000,
		Currency:  "ZAR",
	}
}

func TestRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending booking", func(t *testing.T) {
		fx := newFixture(t)
		bk, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusPending, bk.Status)
		assert.Equal(t, "host-1", bk.HostID)

		records := fx.outbox.Records()
		require.Len(t, records, 1)
		assert.Equal(t, "booking.requested", records[0].Name)
	})

	t.Run("no overlap is accepted", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		_, err = fx.svc.Request(ctx, request("v-1", day(2024, 3, 6), day(2024, 3, 8)))
		assert.NoError(t, err)
	})

	t.Run("overlap is rejected", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		_, err = fx.svc.Request(ctx, request("v-1", day(2024, 3, 4), day(2024, 3, 6)))
		require.Error(t, err)
		assert.True(t, fault.IsKind(err, fault.KindConflict))
	})

	t.Run("other vehicle is unaffected", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		_, err = fx.svc.Request(ctx, request("v-2", day(2024, 3, 1), day(2024, 3, 5)))
		assert.NoError(t, err)
	})

	t.Run("cancelled booking frees the dates", func(t *testing.T) {
		fx := newFixture(t)
		bk, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		_, err = fx.svc.Cancel(ctx, bk.ID, Actor{ID: "renter-1"}, "changed plans")
		require.NoError(t, err)
		_, err = fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		assert.NoError(t, err)
	})

	t.Run("unknown vehicle", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Request(ctx, request("v-404", day(2024, 3, 1), day(2024, 3, 5)))
		assert.True(t, fault.IsKind(err, fault.KindNotFound))
	})

	t.Run("start in the past", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Request(ctx, request("v-1", day(2024, 1, 1), day(2024, 1, 5)))
		assert.True(t, fault.IsKind(err, fault.KindValidation))
	})
}

func TestRequestConcurrent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	const attempts = 10
	var wg sync.WaitGroup
	wg.Add(attempts)
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		assert.True(t, errors.Is(err, domainbooking.ErrDatesConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, success, "exactly one concurrent request may win the dates")
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()
	host := Actor{ID: "host-1"}
	renter := Actor{ID: "renter-1"}

	create := func(t *testing.T, fx fixture) domainbooking.BookingID {
		bk, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
		require.NoError(t, err)
		return bk.ID
	}

	t.Run("approve then activate then complete", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)

		bk, err := fx.svc.Approve(ctx, id, host, "enjoy")
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusApproved, bk.Status)

		bk, err = fx.svc.Activate(ctx, id, host, domainbooking.Handover{Location: "depot"})
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusActive, bk.Status)

		bk, err = fx.svc.Complete(ctx, id, host, domainbooking.Handover{Location: "depot"})
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusCompleted, bk.Status)
	})

	t.Run("complete on pending fails", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)
		_, err := fx.svc.Complete(ctx, id, host, domainbooking.Handover{})
		assert.True(t, fault.IsKind(err, fault.KindInvalidTransition))
	})

	t.Run("renter cannot approve", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)
		_, err := fx.svc.Approve(ctx, id, renter, "")
		assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
	})

	t.Run("stranger cannot cancel", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)
		_, err := fx.svc.Cancel(ctx, id, Actor{ID: "someone-else"}, "")
		assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
	})

	t.Run("renter can cancel", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)
		bk, err := fx.svc.Cancel(ctx, id, renter, "changed plans")
		require.NoError(t, err)
		assert.Equal(t, domainbooking.StatusCancelled, bk.Status)
	})

	t.Run("admin can approve", func(t *testing.T) {
		fx := newFixture(t)
		id := create(t, fx)
		_, err := fx.svc.Approve(ctx, id, Actor{ID: "ops", Admin: true}, "")
		assert.NoError(t, err)
	})

	t.Run("unknown booking", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.svc.Approve(ctx, "missing", host, "")
		assert.True(t, fault.IsKind(err, fault.KindNotFound))
	})
}

func TestLists(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 1), day(2024, 3, 5)))
	require.NoError(t, err)
	bk2, err := fx.svc.Request(ctx, request("v-1", day(2024, 3, 10), day(2024, 3, 12)))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, bk2.ID, Actor{ID: "host-1"}, "")
	require.NoError(t, err)

	mine, err := fx.svc.ListByRenter(ctx, "renter-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	hosted, err := fx.svc.ListByHost(ctx, "host-1", domainbooking.StatusApproved)
	require.NoError(t, err)
	require.Len(t, hosted, 1)
	assert.Equal(t, bk2.ID, hosted[0].ID)
}
