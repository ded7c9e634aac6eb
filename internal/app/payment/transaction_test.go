package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bookingapp "wheelshare/internal/app/booking"
	appoutbox "wheelshare/internal/app/outbox"
	"wheelshare/internal/app/policies"
	"wheelshare/internal/app/uow"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/infra/storage/memory"
)

// sessionMarker is the context value a transactional backend would bind the
// driver session under. The recorder flags any repository or outbox call
// arriving without it: such a call runs outside the transaction.
type sessionMarker struct{}

func inSession(ctx context.Context) bool {
	ok, _ := ctx.Value(sessionMarker{}).(bool)
	return ok
}

type sessionRecorder struct {
	mu     sync.Mutex
	misses []string
}

func (r *sessionRecorder) check(ctx context.Context, op string) {
	if inSession(ctx) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses = append(r.misses, op)
}

type markingFactory struct {
	inner uow.UoWFactory
	rec   *sessionRecorder
}

func (f markingFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.inner.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return markingUnit{UnitOfWork: unit, rec: f.rec}, nil
}

type markingUnit struct {
	uow.UnitOfWork
	rec *sessionRecorder
}

func (u markingUnit) InjectContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionMarker{}, true)
}

func (u markingUnit) Payments() domainpayment.Repository {
	return checkedPayments{inner: u.UnitOfWork.Payments(), rec: u.rec}
}

type checkedPayments struct {
	inner domainpayment.Repository
	rec   *sessionRecorder
}

func (p checkedPayments) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	p.rec.check(ctx, "payments.ByID")
	return p.inner.ByID(ctx, id)
}

func (p checkedPayments) ByProviderReference(ctx context.Context, ref string) (*domainpayment.Payment, error) {
	p.rec.check(ctx, "payments.ByProviderReference")
	return p.inner.ByProviderReference(ctx, ref)
}

func (p checkedPayments) Save(ctx context.Context, pay *domainpayment.Payment) error {
	p.rec.check(ctx, "payments.Save")
	return p.inner.Save(ctx, pay)
}

type checkedOutbox struct {
	inner appoutbox.Outbox
	rec   *sessionRecorder
}

func (o checkedOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.rec.check(ctx, "outbox.Add")
	return o.inner.Add(ctx, record)
}

// The full card flow must run every repository call and outbox append
// under the context the unit of work injected; anything else would let a
// transactional backend commit an empty transaction while the actual
// writes land outside it.
func TestSessionContextReachesWrites(t *testing.T) {
	ctx := context.Background()
	rec := &sessionRecorder{}
	factory := markingFactory{inner: memory.Factory{
		BookingRepo: memory.NewBookingRepository(),
		PaymentRepo: memory.NewPaymentRepository(),
	}, rec: rec}
	box := checkedOutbox{inner: memory.NewOutbox(), rec: rec}
	catalog := memory.NewVehicleCatalog()
	catalog.Put(memory.Vehicle{ID: "v-1", OwnerID: "host-1", Bookable: true})

	card := &fakeProvider{confirmOK: true}
	bookings := bookingapp.NewService(factory, catalog, box)
	svc := NewService(factory, map[domainpayment.Provider]policies.PaymentProvider{
		domainpayment.ProviderCard: card,
	}, box, time.Second)

	start := time.Now().UTC().AddDate(0, 1, 0)
	bk, err := bookings.Request(ctx, bookingapp.RequestParams{
		VehicleID: "v-1", RenterID: "renter-1",
		Start: start, End: start.AddDate(0, 0, 2),
		Total: 50000, Currency: "ZAR",
	})
	require.NoError(t, err)
	_, err = bookings.Approve(ctx, bk.ID, bookingapp.Actor{ID: "host-1"}, "")
	require.NoError(t, err)

	result, err := svc.InitiatePayment(ctx, InitiateParams{
		BookingID: bk.ID, Amount: 50000, Currency: "ZAR",
		Provider: domainpayment.ProviderCard, ActorID: "renter-1",
	})
	require.NoError(t, err)
	p, err := svc.ByID(ctx, result.PaymentID)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmPayment(ctx, p.ProviderReference))
	require.NoError(t, svc.RefundPayment(ctx, p.ID, 50000, "trip cancelled"))

	require.Empty(t, rec.misses, "calls outside the injected transaction context: %v", rec.misses)
}
