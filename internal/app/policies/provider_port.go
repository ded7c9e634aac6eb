package policies

import (
	"context"

	"wheelshare/internal/domain/shared/money"
)

// Attempt is the client-facing handle for a freshly created payment attempt:
// a client secret for the card provider, a redirect URL for the hosted one.
type Attempt struct {
	// Handle is what the client needs to continue the flow.
	Handle string
	// ProviderReference is the external service's opaque id for the attempt.
	ProviderReference string
}

// CallbackResult is the outcome of verifying an inbound provider
// notification.
type CallbackResult struct {
	ProviderReference string
	// Succeeded reports whether the provider settled the attempt. A
	// verified callback can still announce a failed charge.
	Succeeded bool
}

type AttemptParams struct {
	BookingID string
	PaymentID string
	Amount    money.Money
	RenterID  string
	HostID    string
}

// PaymentProvider abstracts the two external payment services behind one
// interface. Implementations must honor context deadlines; no call may hang.
type PaymentProvider interface {
	CreateAttempt(ctx context.Context, params AttemptParams) (Attempt, error)
	// ConfirmAttempt reads the provider-side status of an attempt. Used by
	// the card-network provider; the redirect provider answers with
	// fault.KindProvider.
	ConfirmAttempt(ctx context.Context, providerReference string) (bool, error)
	// VerifyCallback validates an inbound provider notification, including
	// its cryptographic signature where the provider signs payloads. Used
	// by the redirect provider.
	VerifyCallback(ctx context.Context, rawPayload []byte) (CallbackResult, error)
	Refund(ctx context.Context, providerReference string, amount money.Money, reason string) error
}
