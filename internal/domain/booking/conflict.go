package booking

import (
	"context"

	"wheelshare/internal/domain/shared/daterange"
)

// ConflictDetector decides whether a candidate date range is free of
// overlapping blocking reservations for a vehicle.
type ConflictDetector struct {
	Bookings Repository
}

// IsAvailable returns false when any blocking booking for the vehicle
// overlaps the candidate range. excluding, when non-empty, lets a reschedule
// re-check its own dates without self-conflicting.
//
// The check alone is not safe under concurrent creation; callers serialize
// check-then-insert per vehicle (see the booking application service).
func (d ConflictDetector) IsAvailable(ctx context.Context, vehicleID string, dr daterange.DateRange, excluding BookingID) (bool, error) {
	blocking, err := d.Bookings.BlockingForVehicle(ctx, vehicleID)
	if err != nil {
		return false, err
	}
	for _, b := range blocking {
		if excluding != "" && b.ID == excluding {
			continue
		}
		if b.Range.Overlaps(dr) {
			return false, nil
		}
	}
	return true, nil
}
