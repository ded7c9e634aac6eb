package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: end must not be before start")
)

// DateRange represents an inclusive interval of calendar days [Start, End].
// Both bounds are normalized to UTC midnight; the time-of-day component of
// inputs is discarded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func New(start, end time.Time) (DateRange, error) {
	dr := DateRange{Start: Day(start), End: Day(end)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ErrInvalidRange
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Days returns the number of calendar days covered, counting both bounds.
func (dr DateRange) Days() int {
	return int(dr.End.Sub(dr.Start).Hours()/24) + 1
}

// Overlaps reports whether two inclusive ranges share at least one calendar
// day. A shared boundary day counts as an overlap: a vehicle returned on a
// given day cannot be handed over to the next renter that same day.
func (dr DateRange) Overlaps(other DateRange) bool {
	return !(dr.End.Before(other.Start) || dr.Start.After(other.End))
}

func (dr DateRange) Contains(other DateRange) bool {
	return !dr.Start.After(other.Start) && !dr.End.Before(other.End)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	day := Day(t)
	return !day.Before(dr.Start) && !day.After(dr.End)
}
