package policies

import "context"

// NotificationSink delivers user-facing notifications. Delivery is
// best-effort; the caller never rolls back committed state on failure.
type NotificationSink interface {
	Notify(ctx context.Context, userID string, kind string, payload map[string]any) error
}
