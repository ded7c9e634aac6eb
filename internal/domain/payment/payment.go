package payment

import (
	"context"
	"time"

	"wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/events"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

var (
	ErrPaymentNotFound  = fault.New(fault.KindNotFound, "payment: not found")
	ErrAlreadyProcessed = fault.New(fault.KindAlreadyProcessed, "payment: already processed")
)

type PaymentID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

// Provider identifies which external payment service carries the attempt.
type Provider string

const (
	// ProviderCard is the card-network intent provider (client-secret flow).
	ProviderCard Provider = "card"
	// ProviderRedirect is the hosted-checkout provider confirming through
	// signed server-to-server callbacks.
	ProviderRedirect Provider = "redirect"
)

func ParseProvider(raw string) (Provider, error) {
	switch Provider(raw) {
	case ProviderCard:
		return ProviderCard, nil
	case ProviderRedirect:
		return ProviderRedirect, nil
	}
	return "", fault.Newf(fault.KindValidation, "payment: unknown provider %q", raw)
}

// Payment is one attempt to settle a booking. A booking may accumulate a
// failed attempt followed by a successful retry; each attempt is its own row.
type Payment struct {
	ID                PaymentID
	BookingID         booking.BookingID
	RenterID          string
	HostID            string
	Amount            money.Money
	Status            Status
	Provider          Provider
	ProviderReference string
	RefundAmount      money.Money
	RefundReason      string
	RefundRequestedAt time.Time
	CreatedAt         time.Time
	ProcessedAt       time.Time
	Version           int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id PaymentID) (*Payment, error)
	// ByProviderReference resolves the attempt a provider callback or
	// confirmation refers to. The reference carries a unique index; it is
	// the idempotency key for at-least-once provider deliveries.
	ByProviderReference(ctx context.Context, ref string) (*Payment, error)
	Save(ctx context.Context, p *Payment) error
}

type CreateParams struct {
	ID        PaymentID
	BookingID booking.BookingID
	RenterID  string
	HostID    string
	Amount    money.Money
	Provider  Provider
	CreatedAt time.Time
}

func New(params CreateParams) (*Payment, error) {
	if params.BookingID == "" {
		return nil, fault.New(fault.KindValidation, "payment: booking id required")
	}
	if !params.Amount.IsPositive() {
		return nil, fault.New(fault.KindValidation, "payment: amount must be positive")
	}
	if params.Provider != ProviderCard && params.Provider != ProviderRedirect {
		return nil, fault.Newf(fault.KindValidation, "payment: unknown provider %q", params.Provider)
	}
	now := params.CreatedAt.UTC()
	return &Payment{
		ID:        params.ID,
		BookingID: params.BookingID,
		RenterID:  params.RenterID,
		HostID:    params.HostID,
		Amount:    params.Amount,
		Status:    StatusPending,
		Provider:  params.Provider,
		CreatedAt: now,
	}, nil
}

// AttachProviderReference records the opaque id the external service
// returned for this attempt.
func (p *Payment) AttachProviderReference(ref string) error {
	if ref == "" {
		return fault.New(fault.KindProvider, "payment: provider returned empty reference")
	}
	if p.ProviderReference != "" && p.ProviderReference != ref {
		return fault.New(fault.KindConflict, "payment: provider reference already attached")
	}
	p.ProviderReference = ref
	return nil
}

// Complete settles the attempt after verified provider-side confirmation.
// Replays of an already-completed attempt surface ErrAlreadyProcessed so the
// caller can acknowledge without re-emitting side effects.
func (p *Payment) Complete(now time.Time) error {
	switch p.Status {
	case StatusPending:
	case StatusCompleted:
		return ErrAlreadyProcessed
	default:
		return fault.Newf(fault.KindInvalidTransition, "payment: cannot complete a %s payment", p.Status)
	}
	p.Status = StatusCompleted
	p.ProcessedAt = now.UTC()
	p.Record(PaymentReceived{PaymentID: p.ID, BookingID: p.BookingID, RenterID: p.RenterID, HostID: p.HostID, Amount: p.Amount, Provider: p.Provider, At: p.ProcessedAt})
	return nil
}

// Fail records a provider error or rejected verification.
func (p *Payment) Fail(now time.Time) error {
	if p.Status != StatusPending {
		return fault.Newf(fault.KindInvalidTransition, "payment: cannot fail a %s payment", p.Status)
	}
	p.Status = StatusFailed
	p.ProcessedAt = now.UTC()
	p.Record(PaymentFailed{PaymentID: p.ID, BookingID: p.BookingID, RenterID: p.RenterID, At: p.ProcessedAt})
	return nil
}

// StartRefund claims the payment for an in-flight refund without leaving
// the completed status. Persisting the claim before calling the provider
// means a second refund request loses either here or on the version check,
// never at the provider.
func (p *Payment) StartRefund(amount money.Money, reason string, now time.Time) error {
	if p.Status != StatusCompleted {
		return fault.Newf(fault.KindInvalidTransition, "payment: cannot refund a %s payment", p.Status)
	}
	if !p.RefundRequestedAt.IsZero() {
		return fault.New(fault.KindConflict, "payment: a refund is already in progress")
	}
	if amount.Currency != p.Amount.Currency {
		return fault.New(fault.KindValidation, "payment: refund currency mismatch")
	}
	if !amount.IsPositive() || amount.Amount > p.Amount.Amount {
		return fault.New(fault.KindValidation, "payment: refund amount must be positive and not exceed the original amount")
	}
	p.RefundAmount = amount
	p.RefundReason = reason
	p.RefundRequestedAt = now.UTC()
	return nil
}

// AbortRefund releases the claim after the provider declined or errored.
// The payment returns to a plain completed state so a later retry can
// start over.
func (p *Payment) AbortRefund() error {
	if p.Status != StatusCompleted || p.RefundRequestedAt.IsZero() {
		return fault.New(fault.KindInvalidTransition, "payment: no refund in progress")
	}
	p.RefundAmount = money.Money{}
	p.RefundReason = ""
	p.RefundRequestedAt = time.Time{}
	return nil
}

// Refund moves a completed payment to refunded. amount may be below the
// original for partial refunds; the status is refunded either way.
func (p *Payment) Refund(amount money.Money, reason string, now time.Time) error {
	if p.Status != StatusCompleted {
		return fault.Newf(fault.KindInvalidTransition, "payment: cannot refund a %s payment", p.Status)
	}
	if amount.Currency != p.Amount.Currency {
		return fault.New(fault.KindValidation, "payment: refund currency mismatch")
	}
	if !amount.IsPositive() || amount.Amount > p.Amount.Amount {
		return fault.New(fault.KindValidation, "payment: refund amount must be positive and not exceed the original amount")
	}
	p.Status = StatusRefunded
	p.RefundAmount = amount
	p.RefundReason = reason
	p.Record(PaymentRefunded{PaymentID: p.ID, BookingID: p.BookingID, RenterID: p.RenterID, Amount: amount, Reason: reason, At: now.UTC()})
	return nil
}
