package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "wheelshare/internal/app/outbox"
)

type outboxEntry struct {
	record      appoutbox.EventRecord
	sent        bool
	claimed     bool
	claimedAt   time.Time
	attempts    int
	nextAttempt time.Time
}

// Outbox keeps event records in memory. It implements both the application
// Outbox port and the relay worker's store interface so the demo wiring can
// run end to end without mongo.
type Outbox struct {
	// ClaimTimeout is how long a claim holds before the record is handed
	// out again. Zero means five minutes, matching the mongo store.
	ClaimTimeout time.Duration

	mu      sync.Mutex
	entries []*outboxEntry
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, &outboxEntry{record: record, nextAttempt: time.Now()})
	return nil
}

// Claim hands out the oldest unsent record that is due for an attempt.
// Claims from a worker that never reported back expire after the claim
// timeout and the record is offered again.
func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.EventRecord, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for _, e := range o.entries {
		if e.sent || e.nextAttempt.After(now) {
			continue
		}
		if e.claimed && now.Sub(e.claimedAt) < o.claimTimeout() {
			continue
		}
		e.claimed = true
		e.claimedAt = now
		rec := e.record
		return &rec, e.attempts, nil
	}
	return nil, 0, nil
}

func (o *Outbox) claimTimeout() time.Duration {
	if o.ClaimTimeout > 0 {
		return o.ClaimTimeout
	}
	return 5 * time.Minute
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.sent = true
			e.claimed = false
		}
	}
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, e := range o.entries {
		if e.record.ID == id {
			e.claimed = false
			e.attempts++
			e.nextAttempt = next
		}
	}
	return nil
}

// Records returns a snapshot of everything added; used by tests.
func (o *Outbox) Records() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.record)
	}
	return out
}

var _ appoutbox.Outbox = (*Outbox)(nil)
