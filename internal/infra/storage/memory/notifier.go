package memory

import (
	"context"
	"log/slog"
	"sync"
)

// Notification is a delivered in-memory notification; tests assert on these.
type Notification struct {
	UserID  string
	Kind    string
	Payload map[string]any
}

// NotificationSink records notifications instead of delivering them. The
// demo wiring logs each one; tests read them back.
type NotificationSink struct {
	Logger *slog.Logger

	mu    sync.Mutex
	items []Notification
}

func NewNotificationSink(logger *slog.Logger) *NotificationSink {
	return &NotificationSink{Logger: logger}
}

func (s *NotificationSink) Notify(ctx context.Context, userID string, kind string, payload map[string]any) error {
	s.mu.Lock()
	s.items = append(s.items, Notification{UserID: userID, Kind: kind, Payload: payload})
	s.mu.Unlock()
	if s.Logger != nil {
		s.Logger.Info("notification", "user", userID, "kind", kind)
	}
	return nil
}

// Delivered returns a snapshot of everything notified so far.
func (s *NotificationSink) Delivered() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.items))
	copy(out, s.items)
	return out
}
