package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"wheelshare/internal/app/policies"
)

// Dispatcher turns committed domain events into user notifications. Delivery
// is fire-and-forget: each notification runs on its own goroutine with its
// own timeout, and a failed delivery is logged, never propagated. Financial
// state that already committed must not be rolled back by a notification
// problem.
type Dispatcher struct {
	Sink    policies.NotificationSink
	Logger  *slog.Logger
	Timeout time.Duration
}

// eventRecipients is decoded from event payloads; only the routing fields
// matter here.
type eventRecipients struct {
	BookingID string
	RenterID  string
	HostID    string
	Reason    string
}

// Dispatch fans an event out to its recipients. Unknown event names are
// ignored; the broker consumers decide what to do with those.
func (d *Dispatcher) Dispatch(name string, payload []byte) {
	if d == nil || d.Sink == nil {
		return
	}
	var ev eventRecipients
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.log().Warn("notification payload decode failed", "event", name, "error", err)
		return
	}
	data := map[string]any{"booking_id": ev.BookingID}
	if ev.Reason != "" {
		data["reason"] = ev.Reason
	}

	switch name {
	case "booking.requested":
		d.deliver(ev.HostID, "booking_requested", data)
	case "booking.approved":
		d.deliver(ev.RenterID, "booking_approved", data)
	case "booking.rejected":
		d.deliver(ev.RenterID, "booking_rejected", data)
	case "booking.cancelled":
		d.deliver(ev.RenterID, "booking_cancelled", data)
		d.deliver(ev.HostID, "booking_cancelled", data)
	case "payment.received":
		d.deliver(ev.HostID, "payment_received", data)
	case "payment.failed":
		d.deliver(ev.RenterID, "payment_failed", data)
	case "payment.refunded":
		d.deliver(ev.RenterID, "payment_refunded", data)
	}
}

func (d *Dispatcher) deliver(userID, kind string, data map[string]any) {
	if userID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout())
		defer cancel()
		if err := d.Sink.Notify(ctx, userID, kind, data); err != nil {
			d.log().Warn("notification delivery failed", "user", userID, "kind", kind, "error", err)
		}
	}()
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return 5 * time.Second
}

func (d *Dispatcher) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
