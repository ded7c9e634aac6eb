package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"wheelshare/internal/app/outbox"
	"wheelshare/internal/app/policies"
	"wheelshare/internal/app/uow"
	domainbooking "wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/daterange"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	ID    string
	Admin bool
}

// Service owns the reservation lifecycle: creation with conflict detection
// and the host/renter transitions.
type Service struct {
	factory uow.UoWFactory
	catalog policies.VehicleCatalog
	outbox  outbox.Outbox
	encoder outbox.EventEncoder
	locks   *vehicleLocks
	now     func() time.Time
}

func NewService(factory uow.UoWFactory, catalog policies.VehicleCatalog, box outbox.Outbox) *Service {
	return &Service{
		factory: factory,
		catalog: catalog,
		outbox:  box,
		encoder: outbox.JSONEventEncoder{IDGenerator: uuid.NewString},
		locks:   newVehicleLocks(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type RequestParams struct {
	VehicleID string
	RenterID  string
	Start     time.Time
	End       time.Time
	Total     int64
	Currency  string
}

// Request creates a pending booking after checking the vehicle is bookable
// and the dates are free. Check-then-insert runs under a per-vehicle lock.
func (s *Service) Request(ctx context.Context, params RequestParams) (*domainbooking.Booking, error) {
	dr, err := daterange.New(params.Start, params.End)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err)
	}
	if daterange.Day(params.Start).Before(daterange.Day(s.now())) {
		return nil, fault.New(fault.KindValidation, "booking: start date is in the past")
	}
	total, err := money.New(params.Total, params.Currency)
	if err != nil {
		return nil, fault.Wrap(fault.KindValidation, err)
	}

	bookable, err := s.catalog.IsBookable(ctx, params.VehicleID)
	if err != nil {
		return nil, err
	}
	if !bookable {
		return nil, fault.Newf(fault.KindNotFound, "booking: vehicle %s is not bookable", params.VehicleID)
	}
	hostID, err := s.catalog.OwnerOf(ctx, params.VehicleID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(params.VehicleID)
	defer unlock()

	unit, err := s.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	detector := domainbooking.ConflictDetector{Bookings: unit.Bookings()}
	free, err := detector.IsAvailable(ctx, params.VehicleID, dr, "")
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, domainbooking.ErrDatesConflict
	}

	bk, err := domainbooking.New(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(uuid.NewString()),
		VehicleID: params.VehicleID,
		RenterID:  params.RenterID,
		HostID:    hostID,
		Range:     dr,
		Total:     total,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		return nil, err
	}
	if err := s.drainEvents(ctx, bk); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return bk, nil
}

type TransitionParams struct {
	Notes    string
	Reason   string
	Time     time.Time
	Location string
}

func (s *Service) Approve(ctx context.Context, id domainbooking.BookingID, actor Actor, notes string) (*domainbooking.Booking, error) {
	return s.transition(ctx, id, func(b *domainbooking.Booking) error {
		if err := requireHost(b, actor); err != nil {
			return err
		}
		return b.Approve(notes, s.now())
	})
}

func (s *Service) Reject(ctx context.Context, id domainbooking.BookingID, actor Actor, notes string) (*domainbooking.Booking, error) {
	return s.transition(ctx, id, func(b *domainbooking.Booking) error {
		if err := requireHost(b, actor); err != nil {
			return err
		}
		return b.Reject(notes, s.now())
	})
}

func (s *Service) Cancel(ctx context.Context, id domainbooking.BookingID, actor Actor, reason string) (*domainbooking.Booking, error) {
	return s.transition(ctx, id, func(b *domainbooking.Booking) error {
		if !actor.Admin && actor.ID != b.RenterID && actor.ID != b.HostID {
			return fault.New(fault.KindUnauthorized, "booking: only the renter or the host may cancel")
		}
		return b.Cancel(reason, s.now())
	})
}

func (s *Service) Activate(ctx context.Context, id domainbooking.BookingID, actor Actor, pickup domainbooking.Handover) (*domainbooking.Booking, error) {
	return s.transition(ctx, id, func(b *domainbooking.Booking) error {
		if err := requireHost(b, actor); err != nil {
			return err
		}
		return b.Activate(pickup, s.now())
	})
}

func (s *Service) Complete(ctx context.Context, id domainbooking.BookingID, actor Actor, ret domainbooking.Handover) (*domainbooking.Booking, error) {
	return s.transition(ctx, id, func(b *domainbooking.Booking) error {
		if err := requireHost(b, actor); err != nil {
			return err
		}
		return b.Complete(ret, s.now())
	})
}

func (s *Service) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	defer func() { _ = unit.Rollback(ctx) }()
	return unit.Bookings().ByID(ctx, id)
}

func (s *Service) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	defer func() { _ = unit.Rollback(ctx) }()
	return unit.Bookings().ListByRenter(ctx, renterID)
}

func (s *Service) ListByHost(ctx context.Context, hostID string, status domainbooking.Status) ([]*domainbooking.Booking, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	defer func() { _ = unit.Rollback(ctx) }()
	return unit.Bookings().ListByHost(ctx, hostID, status)
}

func (s *Service) transition(ctx context.Context, id domainbooking.BookingID, apply func(*domainbooking.Booking) error) (*domainbooking.Booking, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	bk, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(bk); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, bk); err != nil {
		return nil, err
	}
	if err := s.drainEvents(ctx, bk); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return bk, nil
}

func (s *Service) drainEvents(ctx context.Context, bk *domainbooking.Booking) error {
	pending := bk.PendingEvents()
	bk.ClearEvents()
	return outbox.RecordDomainEvents(ctx, s.outbox, s.encoder, pending)
}

func requireHost(b *domainbooking.Booking, actor Actor) error {
	if actor.Admin || actor.ID == b.HostID {
		return nil
	}
	return fault.New(fault.KindUnauthorized, "booking: only the vehicle owner may perform this action")
}
