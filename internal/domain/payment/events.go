package payment

import (
	"time"

	"wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/money"
)

type PaymentReceived struct {
	PaymentID PaymentID
	BookingID booking.BookingID
	RenterID  string
	HostID    string
	Amount    money.Money
	Provider  Provider
	At        time.Time
}

func (e PaymentReceived) EventName() string     { return "payment.received" }
func (e PaymentReceived) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentReceived) OccurredAt() time.Time { return e.At }

type PaymentFailed struct {
	PaymentID PaymentID
	BookingID booking.BookingID
	RenterID  string
	At        time.Time
}

func (e PaymentFailed) EventName() string     { return "payment.failed" }
func (e PaymentFailed) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentFailed) OccurredAt() time.Time { return e.At }

type PaymentRefunded struct {
	PaymentID PaymentID
	BookingID booking.BookingID
	RenterID  string
	Amount    money.Money
	Reason    string
	At        time.Time
}

func (e PaymentRefunded) EventName() string     { return "payment.refunded" }
func (e PaymentRefunded) AggregateID() string   { return string(e.PaymentID) }
func (e PaymentRefunded) OccurredAt() time.Time { return e.At }
