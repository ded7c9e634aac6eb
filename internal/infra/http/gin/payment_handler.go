package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"wheelshare/internal/app/dto"
	paymentapp "wheelshare/internal/app/payment"
	domainbooking "wheelshare/internal/domain/booking"
	domainpayment "wheelshare/internal/domain/payment"
)

// paymentKeyParam names the single wildcard segment under /payments. gin
// allows one wildcard name per position, so the same segment carries the
// provider key on flow routes and the payment id on resource routes.
const paymentKeyParam = "key"

type PaymentHandler struct {
	Service *paymentapp.Service
}

func providerParam(c *gin.Context) (domainpayment.Provider, bool) {
	provider, err := domainpayment.ParseProvider(c.Param(paymentKeyParam))
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return provider, true
}

func paymentIDParam(c *gin.Context) domainpayment.PaymentID {
	return domainpayment.PaymentID(c.Param(paymentKeyParam))
}

type createPaymentRequest struct {
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func (h PaymentHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := h.Service.InitiatePayment(c.Request.Context(), paymentapp.InitiateParams{
		BookingID: domainbooking.BookingID(req.BookingID),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Provider:  provider,
		ActorID:   user.ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment_id": string(result.PaymentID),
		"handle":     result.Handle,
	})
}

type confirmPaymentRequest struct {
	ProviderReference string `json:"provider_reference"`
}

func (h PaymentHandler) Confirm(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	if _, ok := providerParam(c); !ok {
		return
	}
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.Service.ConfirmPayment(c.Request.Context(), req.ProviderReference)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": string(domainpayment.StatusCompleted)})
	case paymentapp.IsAlreadyProcessed(err):
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
	default:
		respondError(c, err)
	}
}

// Callback receives the provider's asynchronous notification. The response is
// the plain-text acknowledgment the provider expects; error detail never
// leaks back to the provider.
func (h PaymentHandler) Callback(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "FAILED")
		return
	}
	err = h.Service.HandleCallback(c.Request.Context(), provider, raw)
	if err != nil && !paymentapp.IsAlreadyProcessed(err) {
		c.String(http.StatusBadRequest, "FAILED")
		return
	}
	c.String(http.StatusOK, "OK")
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func (h PaymentHandler) Refund(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	id := paymentIDParam(c)
	p, err := h.Service.ByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.HasRole("admin") && user.ID != p.HostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.RefundPayment(c.Request.Context(), id, req.Amount, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(domainpayment.StatusRefunded)})
}

func (h PaymentHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	p, err := h.Service.ByID(c.Request.Context(), paymentIDParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !user.HasRole("admin") && user.ID != p.RenterID && user.ID != p.HostID {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return
	}
	c.JSON(http.StatusOK, dto.MapPayment(p))
}

var _ PaymentHTTP = PaymentHandler{}
