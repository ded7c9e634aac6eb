package stripecard

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"wheelshare/internal/app/policies"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
)

// Adapter is the card-network provider: a PaymentIntent is created per
// attempt and the client finishes it with the returned client secret. The
// stripe client is injected, never a package-level singleton.
type Adapter struct {
	api *client.API
}

func New(secretKey string) (*Adapter, error) {
	if secretKey == "" {
		return nil, errors.New("stripecard: secret key required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Adapter{api: api}, nil
}

// NewWithAPI wires a preconfigured client; used by tests with a stubbed
// backend.
func NewWithAPI(api *client.API) *Adapter {
	return &Adapter{api: api}
}

func (a *Adapter) CreateAttempt(ctx context.Context, params policies.AttemptParams) (policies.Attempt, error) {
	piParams := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(params.Amount.Amount),
		Currency: stripe.String(strings.ToLower(params.Amount.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.AddMetadata("booking_id", params.BookingID)
	piParams.AddMetadata("payment_id", params.PaymentID)
	piParams.AddMetadata("renter_id", params.RenterID)

	pi, err := a.api.PaymentIntents.New(piParams)
	if err != nil {
		return policies.Attempt{}, err
	}
	return policies.Attempt{Handle: pi.ClientSecret, ProviderReference: pi.ID}, nil
}

func (a *Adapter) ConfirmAttempt(ctx context.Context, providerReference string) (bool, error) {
	pi, err := a.api.PaymentIntents.Get(providerReference, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return false, err
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, nil
}

// VerifyCallback is not part of the card flow; completion goes through
// ConfirmAttempt.
func (a *Adapter) VerifyCallback(ctx context.Context, rawPayload []byte) (policies.CallbackResult, error) {
	return policies.CallbackResult{}, fault.New(fault.KindProvider, "stripecard: callbacks are not supported")
}

func (a *Adapter) Refund(ctx context.Context, providerReference string, amount money.Money, reason string) error {
	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(providerReference),
		Amount:        stripe.Int64(amount.Amount),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	// Stripe only accepts its reason enum; the free-text reason travels as
	// metadata.
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	_, err := a.api.Refunds.New(params)
	return err
}

var _ policies.PaymentProvider = (*Adapter)(nil)
