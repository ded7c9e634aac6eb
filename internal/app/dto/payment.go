package dto

import (
	"time"

	domainpayment "wheelshare/internal/domain/payment"
)

type PaymentDTO struct {
	ID                string     `json:"id"`
	BookingID         string     `json:"booking_id"`
	RenterID          string     `json:"renter_id"`
	HostID            string     `json:"host_id"`
	Amount            MoneyDTO   `json:"amount"`
	Status            string     `json:"status"`
	Provider          string     `json:"provider"`
	ProviderReference string     `json:"provider_reference,omitempty"`
	RefundAmount      *MoneyDTO  `json:"refund_amount,omitempty"`
	RefundReason      string     `json:"refund_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ProcessedAt       *time.Time `json:"processed_at,omitempty"`
}

func MapPayment(p *domainpayment.Payment) PaymentDTO {
	out := PaymentDTO{
		ID:                string(p.ID),
		BookingID:         string(p.BookingID),
		RenterID:          p.RenterID,
		HostID:            p.HostID,
		Amount:            MapMoney(p.Amount),
		Status:            string(p.Status),
		Provider:          string(p.Provider),
		ProviderReference: p.ProviderReference,
		RefundReason:      p.RefundReason,
		CreatedAt:         p.CreatedAt,
	}
	if !p.RefundAmount.IsZero() {
		refund := MapMoney(p.RefundAmount)
		out.RefundAmount = &refund
	}
	if !p.ProcessedAt.IsZero() {
		t := p.ProcessedAt
		out.ProcessedAt = &t
	}
	return out
}
