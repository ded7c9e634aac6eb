package payfast

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"wheelshare/internal/app/policies"
	"wheelshare/internal/domain/shared/fault"
	"wheelshare/internal/domain/shared/money"
	"wheelshare/internal/infra/config"
)

// Adapter is the hosted-redirect provider: CreateAttempt produces a signed
// checkout URL, completion arrives asynchronously through the signed ITN
// callback. Amounts cross the wire as decimal strings.
type Adapter struct {
	Cfg    config.PayFastConfig
	Client *http.Client
	Logger *slog.Logger
}

func New(cfg config.PayFastConfig, logger *slog.Logger) *Adapter {
	return &Adapter{
		Cfg:    cfg,
		Client: &http.Client{},
		Logger: logger,
	}
}

func (a *Adapter) CreateAttempt(ctx context.Context, params policies.AttemptParams) (policies.Attempt, error) {
	if a.Cfg.MerchantID == "" || a.Cfg.MerchantKey == "" {
		return policies.Attempt{}, fault.New(fault.KindProvider, "payfast: merchant credentials not configured")
	}

	fields := map[string]string{
		"merchant_id":  a.Cfg.MerchantID,
		"merchant_key": a.Cfg.MerchantKey,
		"m_payment_id": params.PaymentID,
		"amount":       formatAmount(params.Amount),
		"item_name":    "Booking " + params.BookingID,
	}
	if a.Cfg.ReturnURL != "" {
		fields["return_url"] = a.Cfg.ReturnURL
	}
	if a.Cfg.CancelURL != "" {
		fields["cancel_url"] = a.Cfg.CancelURL
	}
	if a.Cfg.NotifyURL != "" {
		fields["notify_url"] = a.Cfg.NotifyURL
	}
	fields["signature"] = Sign(fields, a.Cfg.Passphrase)

	checkout := a.Cfg.ProcessURL + "?" + encodeSorted(fields)

	// The provider has no id of its own until the callback lands; our
	// payment id doubles as the reference, echoed back in m_payment_id.
	return policies.Attempt{Handle: checkout, ProviderReference: params.PaymentID}, nil
}

// ConfirmAttempt is not supported: the redirect flow settles via callback
// only.
func (a *Adapter) ConfirmAttempt(ctx context.Context, providerReference string) (bool, error) {
	return false, fault.New(fault.KindProvider, "payfast: status polling is not supported, settlement arrives via callback")
}

// VerifyCallback recomputes the signature over the form payload and rejects
// any mismatch before the body is trusted.
func (a *Adapter) VerifyCallback(ctx context.Context, rawPayload []byte) (policies.CallbackResult, error) {
	values, err := url.ParseQuery(string(rawPayload))
	if err != nil {
		return policies.CallbackResult{}, fault.Wrap(fault.KindValidation, err)
	}

	fields := make(map[string]string, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}
	got, ok := fields["signature"]
	if !ok {
		return policies.CallbackResult{}, fault.New(fault.KindSignature, "payfast: callback missing signature")
	}
	delete(fields, "signature")

	want := Sign(fields, a.Cfg.Passphrase)
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return policies.CallbackResult{}, fault.New(fault.KindSignature, "payfast: callback signature mismatch")
	}

	ref := fields["m_payment_id"]
	if ref == "" {
		return policies.CallbackResult{}, fault.New(fault.KindValidation, "payfast: callback missing m_payment_id")
	}
	return policies.CallbackResult{
		ProviderReference: ref,
		Succeeded:         fields["payment_status"] == "COMPLETE",
	}, nil
}

func (a *Adapter) Refund(ctx context.Context, providerReference string, amount money.Money, reason string) error {
	form := url.Values{}
	form.Set("merchant_id", a.Cfg.MerchantID)
	form.Set("m_payment_id", providerReference)
	form.Set("amount", formatAmount(amount))
	form.Set("reason", reason)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Cfg.RefundURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fault.Wrap(fault.KindProvider, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.Client.Do(req)
	if err != nil {
		return fault.Wrap(fault.KindProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if a.Logger != nil {
			a.Logger.Error("payfast refund rejected",
				slog.Int("status", resp.StatusCode),
				slog.String("reference", providerReference))
		}
		return fault.Newf(fault.KindProvider, "payfast: refund rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Sign computes the MD5 signature over the fields: keys sorted, values
// URL-encoded, joined by &, with the passphrase appended when configured.
func Sign(fields map[string]string, passphrase string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[key]))
	}
	if passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(url.QueryEscape(passphrase))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func encodeSorted(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[key]))
	}
	return b.String()
}

func formatAmount(amount money.Money) string {
	return fmt.Sprintf("%d.%02d", amount.Amount/100, amount.Amount%100)
}

var _ policies.PaymentProvider = (*Adapter)(nil)
