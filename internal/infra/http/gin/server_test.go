package ginserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingapp "wheelshare/internal/app/booking"
	paymentapp "wheelshare/internal/app/payment"
	"wheelshare/internal/app/policies"
	domainpayment "wheelshare/internal/domain/payment"
	"wheelshare/internal/infra/config"
	"wheelshare/internal/infra/obs"
	"wheelshare/internal/infra/providers/payfast"
	"wheelshare/internal/infra/storage/memory"
)

const payfastPassphrase = "test-passphrase"

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T, refundURL string) testServer {
	t.Helper()
	catalog := memory.NewVehicleCatalog()
	catalog.Put(memory.Vehicle{ID: "v-1", OwnerID: "host-1", Bookable: true})
	box := memory.NewOutbox()
	factory := memory.Factory{
		BookingRepo: memory.NewBookingRepository(),
		PaymentRepo: memory.NewPaymentRepository(),
	}

	pf := payfast.New(config.PayFastConfig{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  payfastPassphrase,
		ProcessURL:  "https://sandbox.payfast.co.za/eng/process",
		RefundURL:   refundURL,
	}, nil)

	bookingSvc := bookingapp.NewService(factory, catalog, box)
	paymentSvc := paymentapp.NewService(factory, map[domainpayment.Provider]policies.PaymentProvider{
		domainpayment.ProviderRedirect: pf,
	}, box, time.Second)

	verifier := NewStaticTokenVerifier(map[string]Principal{
		"t-renter": {ID: "renter-1"},
		"t-host":   {ID: "host-1"},
		"t-admin":  {ID: "ops", Roles: []string{"admin"}},
	})
	authMW := AuthMiddleware{Verifier: verifier}

	server := NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking:        BookingHandler{Service: bookingSvc},
		Payment:        PaymentHandler{Service: paymentSvc},
		Me:             MeHandler{Bookings: bookingSvc},
		HostBooking:    HostBookingHandler{Bookings: bookingSvc},
		AuthMiddleware: authMW.Handle,
	})
	return testServer{handler: server.Handler}
}

func (ts testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 1, days).Format("2006-01-02")
}

func createBookingBody(startOffset, endOffset int) map[string]any {
	return map[string]any{
		"vehicle_id":  "v-1",
		"start_date":  futureDate(startOffset),
		"end_date":    futureDate(endOffset),
		"total_price": 50000,
		"currency":    "ZAR",
	}
}

func TestBookingEndpoints(t *testing.T) {
	t.Run("create requires auth", func(t *testing.T) {
		ts := newTestServer(t, "")
		rec := ts.do(t, http.MethodPost, "/api/v1/bookings", "", createBookingBody(0, 2))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create then conflict", func(t *testing.T) {
		ts := newTestServer(t, "")
		rec := ts.do(t, http.MethodPost, "/api/v1/bookings", "t-renter", createBookingBody(0, 4))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "pending", created.Status)

		rec = ts.do(t, http.MethodPost, "/api/v1/bookings", "t-renter", createBookingBody(3, 5))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("transition authorization", func(t *testing.T) {
		ts := newTestServer(t, "")
		rec := ts.do(t, http.MethodPost, "/api/v1/bookings", "t-renter", createBookingBody(0, 2))
		require.Equal(t, http.StatusCreated, rec.Code)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		path := "/api/v1/bookings/" + created.ID + "/approve"

		rec = ts.do(t, http.MethodPatch, path, "t-renter", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = ts.do(t, http.MethodPatch, path, "t-host", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// approve twice is an illegal transition
		rec = ts.do(t, http.MethodPatch, path, "t-host", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lists", func(t *testing.T) {
		ts := newTestServer(t, "")
		rec := ts.do(t, http.MethodPost, "/api/v1/bookings", "t-renter", createBookingBody(0, 2))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/v1/me/bookings", "t-renter", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list struct {
			Items []json.RawMessage `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list.Items, 1)

		rec = ts.do(t, http.MethodGet, "/api/v1/host/bookings?status=pending", "t-host", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodGet, "/api/v1/host/bookings?status=bogus", "t-host", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// Full redirect-provider journey over HTTP: book, approve, initiate, signed
// callback, replayed callback, lookup, refund.
func TestRedirectPaymentJourney(t *testing.T) {
	refundBackend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer refundBackend.Close()

	ts := newTestServer(t, refundBackend.URL)

	rec := ts.do(t, http.MethodPost, "/api/v1/bookings", "t-renter", createBookingBody(0, 2))
	require.Equal(t, http.StatusCreated, rec.Code)
	var booking struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &booking))

	rec = ts.do(t, http.MethodPatch, "/api/v1/bookings/"+booking.ID+"/approve", "t-host", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/payments/redirect/create", "t-renter", map[string]any{
		"booking_id": booking.ID,
		"amount":     50000,
		"currency":   "ZAR",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var initiated struct {
		PaymentID string `json:"payment_id"`
		Handle    string `json:"handle"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &initiated))
	assert.Contains(t, initiated.Handle, "sandbox.payfast.co.za")

	callback := func(status string) *httptest.ResponseRecorder {
		fields := map[string]string{
			"m_payment_id":   initiated.PaymentID,
			"amount_gross":   "500.00",
			"payment_status": status,
		}
		values := url.Values{}
		for k, v := range fields {
			values.Set(k, v)
		}
		values.Set("signature", payfast.Sign(fields, payfastPassphrase))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/redirect/callback",
			bytes.NewBufferString(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		out := httptest.NewRecorder()
		ts.handler.ServeHTTP(out, req)
		return out
	}

	out := callback("COMPLETE")
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "OK", out.Body.String())

	// replayed delivery acknowledges without settling twice
	out = callback("COMPLETE")
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "OK", out.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/payments/"+initiated.PaymentID, "t-renter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var payment struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payment))
	assert.Equal(t, "completed", payment.Status)

	// the renter cannot refund, the host can
	refundBody := map[string]any{"amount": 50000, "reason": "trip cancelled"}
	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/%s/refund", initiated.PaymentID), "t-renter", refundBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/payments/%s/refund", initiated.PaymentID), "t-host", refundBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/payments/"+initiated.PaymentID, "t-renter", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payment))
	assert.Equal(t, "refunded", payment.Status)
}

func TestCallbackRejectsTampering(t *testing.T) {
	ts := newTestServer(t, "")

	fields := map[string]string{
		"m_payment_id":   "p-1",
		"payment_status": "COMPLETE",
	}
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	values.Set("signature", payfast.Sign(fields, "wrong-passphrase"))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/redirect/callback",
		bytes.NewBufferString(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FAILED", rec.Body.String())
}
