package booking

import (
	"context"
	"time"

	"wheelshare/internal/domain/shared/daterange"
	"wheelshare/internal/domain/shared/events"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

var (
	ErrBookingNotFound = fault.New(fault.KindNotFound, "booking: not found")
	ErrDatesConflict   = fault.New(fault.KindConflict, "booking: vehicle already reserved for the requested dates")
)

type BookingID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// BlockingStatuses are the states that reserve the vehicle's calendar.
// Rejected and cancelled bookings free the dates; completed ones are in the
// past and no longer block.
var BlockingStatuses = []Status{StatusPending, StatusApproved, StatusActive}

func (s Status) Blocks() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

// ParseStatus validates an externally supplied status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusActive, StatusCompleted, StatusCancelled:
		return s, nil
	}
	return "", fault.Newf(fault.KindValidation, "booking: unknown status %q", raw)
}

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Handover captures the pickup or return moment of the vehicle.
type Handover struct {
	Time     time.Time
	Location string
}

// Booking is the reservation aggregate. Transitions are only legal through
// the methods below; each enforces its guard and records a domain event.
type Booking struct {
	ID                 BookingID
	VehicleID          string
	RenterID           string
	HostID             string
	Range              daterange.DateRange
	Status             Status
	Total              money.Money
	HostNotes          string
	CancellationReason string
	Pickup             Handover
	Return             Handover
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// BlockingForVehicle returns all bookings in a blocking status for the
	// vehicle, regardless of dates.
	BlockingForVehicle(ctx context.Context, vehicleID string) ([]*Booking, error)
	ListByRenter(ctx context.Context, renterID string) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID string, status Status) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	VehicleID string
	RenterID  string
	HostID    string
	Range     daterange.DateRange
	Total     money.Money
	CreatedAt time.Time
}

func New(params CreateParams) (*Booking, error) {
	if params.RenterID == "" {
		return nil, fault.New(fault.KindValidation, "booking: renter id required")
	}
	if params.VehicleID == "" {
		return nil, fault.New(fault.KindValidation, "booking: vehicle id required")
	}
	if params.HostID == params.RenterID {
		return nil, fault.New(fault.KindValidation, "booking: renter cannot book their own vehicle")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, fault.Wrap(fault.KindValidation, err)
	}
	if !params.Total.IsPositive() {
		return nil, fault.New(fault.KindValidation, "booking: total price must be positive")
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:        params.ID,
		VehicleID: params.VehicleID,
		RenterID:  params.RenterID,
		HostID:    params.HostID,
		Range:     params.Range,
		Status:    StatusPending,
		Total:     params.Total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingRequested{BookingID: b.ID, VehicleID: b.VehicleID, RenterID: b.RenterID, HostID: b.HostID, Range: b.Range, Total: b.Total, At: now})
	return b, nil
}

func (b *Booking) Approve(notes string, now time.Time) error {
	if b.Status != StatusPending {
		return b.transitionError(StatusApproved)
	}
	b.Status = StatusApproved
	b.HostNotes = notes
	b.UpdatedAt = now.UTC()
	b.Record(BookingApproved{BookingID: b.ID, VehicleID: b.VehicleID, RenterID: b.RenterID, HostID: b.HostID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Reject(notes string, now time.Time) error {
	if b.Status != StatusPending {
		return b.transitionError(StatusRejected)
	}
	b.Status = StatusRejected
	b.HostNotes = notes
	b.UpdatedAt = now.UTC()
	b.Record(BookingRejected{BookingID: b.ID, RenterID: b.RenterID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Cancel(reason string, now time.Time) error {
	if b.Status != StatusPending && b.Status != StatusApproved {
		return b.transitionError(StatusCancelled)
	}
	b.Status = StatusCancelled
	b.CancellationReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(BookingCancelled{BookingID: b.ID, VehicleID: b.VehicleID, RenterID: b.RenterID, HostID: b.HostID, Reason: reason, At: b.UpdatedAt})
	return nil
}

// Activate marks the vehicle as handed over to the renter.
func (b *Booking) Activate(pickup Handover, now time.Time) error {
	if b.Status != StatusApproved {
		return b.transitionError(StatusActive)
	}
	b.Status = StatusActive
	if pickup.Time.IsZero() {
		pickup.Time = now.UTC()
	}
	b.Pickup = pickup
	b.UpdatedAt = now.UTC()
	b.Record(BookingActivated{BookingID: b.ID, RenterID: b.RenterID, At: b.UpdatedAt})
	return nil
}

// Complete marks the vehicle as returned to the host.
func (b *Booking) Complete(ret Handover, now time.Time) error {
	if b.Status != StatusActive {
		return b.transitionError(StatusCompleted)
	}
	b.Status = StatusCompleted
	if ret.Time.IsZero() {
		ret.Time = now.UTC()
	}
	b.Return = ret
	b.UpdatedAt = now.UTC()
	b.Record(BookingCompleted{BookingID: b.ID, RenterID: b.RenterID, HostID: b.HostID, At: b.UpdatedAt})
	return nil
}

// Payable reports whether a payment attempt may be initiated. Payment is
// collected only after the host approved the request.
func (b *Booking) Payable() bool {
	return b.Status == StatusApproved
}

func (b *Booking) transitionError(to Status) error {
	return fault.Newf(fault.KindInvalidTransition, "booking: cannot transition from %s to %s", b.Status, to)
}
