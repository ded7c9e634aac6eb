package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"wheelshare/internal/app/outbox"
	"wheelshare/internal/app/policies"
	"wheelshare/internal/app/uow"
	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

var (
	ErrBookingNotPayable = fault.New(fault.KindConflict, "payment: booking is not approved for payment")
	// ErrBookingRegressed rejects a provider confirmation arriving after the
	// booking left its payable states (e.g. was cancelled). The payment row
	// stays pending for manual reconciliation.
	ErrBookingRegressed = fault.New(fault.KindConflict, "payment: booking no longer accepts payment confirmation")
)

// Service reconciles provider-side payment outcomes with local Payment and
// Booking state. Every mutating operation is safe to invoke at most once per
// legitimate external event; replays surface fault.KindAlreadyProcessed,
// which the transport treats as success.
type Service struct {
	factory         uow.UoWFactory
	providers       map[domainpayment.Provider]policies.PaymentProvider
	outbox          outbox.Outbox
	encoder         outbox.EventEncoder
	providerTimeout time.Duration
	now             func() time.Time
}

func NewService(factory uow.UoWFactory, providers map[domainpayment.Provider]policies.PaymentProvider, box outbox.Outbox, providerTimeout time.Duration) *Service {
	if providerTimeout <= 0 {
		providerTimeout = 15 * time.Second
	}
	return &Service{
		factory:         factory,
		providers:       providers,
		outbox:          box,
		encoder:         outbox.JSONEventEncoder{IDGenerator: uuid.NewString},
		providerTimeout: providerTimeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

type InitiateParams struct {
	BookingID domainbooking.BookingID
	Amount    int64
	Currency  string
	Provider  domainpayment.Provider
	ActorID   string
}

type InitiateResult struct {
	PaymentID domainpayment.PaymentID
	Handle    string
}

// InitiatePayment creates a pending payment attempt for an approved booking
// and registers it with the external provider. The returned handle is the
// provider-specific continuation for the client: a client secret for the
// card provider, a redirect URL for the hosted one.
func (s *Service) InitiatePayment(ctx context.Context, params InitiateParams) (InitiateResult, error) {
	provider, err := s.provider(params.Provider)
	if err != nil {
		return InitiateResult{}, err
	}
	amount, err := money.New(params.Amount, params.Currency)
	if err != nil {
		return InitiateResult{}, fault.Wrap(fault.KindValidation, err)
	}
	if !amount.IsPositive() {
		return InitiateResult{}, fault.New(fault.KindValidation, "payment: amount must be positive")
	}

	p, err := s.createAttemptRow(ctx, params, amount)
	if err != nil {
		return InitiateResult{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	attempt, err := provider.CreateAttempt(callCtx, policies.AttemptParams{
		BookingID: string(p.BookingID),
		PaymentID: string(p.ID),
		Amount:    p.Amount,
		RenterID:  p.RenterID,
		HostID:    p.HostID,
	})
	if err != nil {
		// The attempt never reached the provider; fail the row so a retry
		// starts a fresh one.
		_ = s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
			return p.Fail(s.now())
		})
		return InitiateResult{}, fault.Wrap(fault.KindProvider, err)
	}

	err = s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
		return p.AttachProviderReference(attempt.ProviderReference)
	})
	if err != nil {
		return InitiateResult{}, err
	}
	return InitiateResult{PaymentID: p.ID, Handle: attempt.Handle}, nil
}

// ConfirmPayment is the card-network completion path: it reads the attempt's
// status from the provider and settles the local state. Confirming an
// already-completed attempt is a no-op reported as fault.KindAlreadyProcessed.
func (s *Service) ConfirmPayment(ctx context.Context, providerReference string) error {
	p, err := s.paymentByReference(ctx, providerReference)
	if err != nil {
		return err
	}
	if p.Status == domainpayment.StatusCompleted {
		return domainpayment.ErrAlreadyProcessed
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	succeeded, err := provider.ConfirmAttempt(callCtx, providerReference)
	if err != nil {
		return fault.Wrap(fault.KindProvider, err)
	}
	if !succeeded {
		if err := s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
			return p.Fail(s.now())
		}); err != nil {
			return err
		}
		return fault.New(fault.KindProvider, "payment: provider reported the attempt as not settled")
	}
	return s.complete(ctx, p.ID)
}

// HandleCallback is the redirect-provider completion path. The payload
// signature is verified before anything else; a mismatch rejects the
// callback with no state change. Replayed deliveries of an already-settled
// attempt return fault.KindAlreadyProcessed without re-emitting events.
func (s *Service) HandleCallback(ctx context.Context, providerKind domainpayment.Provider, rawPayload []byte) error {
	provider, err := s.provider(providerKind)
	if err != nil {
		return err
	}
	res, err := provider.VerifyCallback(ctx, rawPayload)
	if err != nil {
		return err
	}
	p, err := s.paymentByReference(ctx, res.ProviderReference)
	if err != nil {
		return err
	}
	if p.Provider != providerKind {
		return fault.New(fault.KindValidation, "payment: callback provider does not match the attempt")
	}
	if !res.Succeeded {
		if p.Status != domainpayment.StatusPending {
			return domainpayment.ErrAlreadyProcessed
		}
		return s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
			return p.Fail(s.now())
		})
	}
	if p.Status == domainpayment.StatusCompleted {
		return domainpayment.ErrAlreadyProcessed
	}
	return s.complete(ctx, p.ID)
}

// RefundPayment refunds a completed payment, fully or partially. The
// refund claim is committed before the provider call: of two concurrent
// requests, exactly one reaches the provider; the other fails on the
// in-progress claim or the version check. A provider failure releases the
// claim so the refund can be retried.
func (s *Service) RefundPayment(ctx context.Context, id domainpayment.PaymentID, amount int64, reason string) error {
	p, err := s.paymentByID(ctx, id)
	if err != nil {
		return err
	}
	refund, err := money.New(amount, p.Amount.Currency)
	if err != nil {
		return fault.Wrap(fault.KindValidation, err)
	}
	provider, err := s.provider(p.Provider)
	if err != nil {
		return err
	}

	if err := s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
		return p.StartRefund(refund, reason, s.now())
	}); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()
	if err := provider.Refund(callCtx, p.ProviderReference, refund, reason); err != nil {
		_ = s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
			return p.AbortRefund()
		})
		return fault.Wrap(fault.KindProvider, err)
	}

	return s.mutatePayment(ctx, p.ID, func(p *domainpayment.Payment) error {
		return p.Refund(refund, reason, s.now())
	})
}

func (s *Service) ByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	return s.paymentByID(ctx, id)
}

// complete settles the payment and re-validates the booking atomically. The
// booking itself is never mutated here: approval is the host's decision, and
// a booking already active or completed must not regress.
func (s *Service) complete(ctx context.Context, id domainpayment.PaymentID) error {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	ctx = uow.SessionContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	p, err := unit.Payments().ByID(ctx, id)
	if err != nil {
		return err
	}
	bk, err := unit.Bookings().ByID(ctx, p.BookingID)
	if err != nil {
		return err
	}
	switch bk.Status {
	case domainbooking.StatusApproved, domainbooking.StatusActive, domainbooking.StatusCompleted:
	default:
		return ErrBookingRegressed
	}
	if err := p.Complete(s.now()); err != nil {
		return err
	}
	if err := unit.Payments().Save(ctx, p); err != nil {
		return err
	}
	if err := s.drainEvents(ctx, p); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Service) createAttemptRow(ctx context.Context, params InitiateParams, amount money.Money) (*domainpayment.Payment, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	bk, err := unit.Bookings().ByID(ctx, params.BookingID)
	if err != nil {
		return nil, err
	}
	if !bk.Payable() {
		return nil, ErrBookingNotPayable
	}
	if params.ActorID != "" && params.ActorID != bk.RenterID {
		return nil, fault.New(fault.KindUnauthorized, "payment: only the renter may pay for a booking")
	}
	if amount.Currency != bk.Total.Currency {
		return nil, fault.New(fault.KindValidation, "payment: currency does not match the booking")
	}

	p, err := domainpayment.New(domainpayment.CreateParams{
		ID:        domainpayment.PaymentID(uuid.NewString()),
		BookingID: bk.ID,
		RenterID:  bk.RenterID,
		HostID:    bk.HostID,
		Amount:    amount,
		Provider:  params.Provider,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Payments().Save(ctx, p); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}
	committed = true
	return p, nil
}

func (s *Service) mutatePayment(ctx context.Context, id domainpayment.PaymentID, apply func(*domainpayment.Payment) error) error {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	ctx = uow.SessionContext(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	p, err := unit.Payments().ByID(ctx, id)
	if err != nil {
		return err
	}
	if err := apply(p); err != nil {
		return err
	}
	if err := unit.Payments().Save(ctx, p); err != nil {
		return err
	}
	if err := s.drainEvents(ctx, p); err != nil {
		return err
	}
	if err := unit.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Service) paymentByID(ctx context.Context, id domainpayment.PaymentID) (*domainpayment.Payment, error) {
	unit, err := s.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	defer func() { _ = unit.Rollback(ctx) }()
	return unit.Payments().ByID(ctx, id)
}

func (s *Service) paymentByReference(ctx context.Context, ref string) (*domainpayment.Payment, error) {
	if ref == "" {
		return nil, fault.New(fault.KindValidation, "payment: provider reference required")
	}
	unit, err := s.factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}
	ctx = uow.SessionContext(ctx, unit)
	defer func() { _ = unit.Rollback(ctx) }()
	return unit.Payments().ByProviderReference(ctx, ref)
}

func (s *Service) drainEvents(ctx context.Context, p *domainpayment.Payment) error {
	pending := p.PendingEvents()
	p.ClearEvents()
	return outbox.RecordDomainEvents(ctx, s.outbox, s.encoder, pending)
}

func (s *Service) provider(kind domainpayment.Provider) (policies.PaymentProvider, error) {
	p, ok := s.providers[kind]
	if !ok || p == nil {
		return nil, fault.Newf(fault.KindValidation, "payment: provider %q not configured", kind)
	}
	return p, nil
}

// IsAlreadyProcessed reports whether an error is the benign replay outcome.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, domainpayment.ErrAlreadyProcessed) || fault.IsKind(err, fault.KindAlreadyProcessed)
}
