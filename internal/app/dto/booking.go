package dto

import (
	"time"

	domainbooking "wheelshare/internal/domain/booking"
	"wheelshare/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type HandoverDTO struct {
	Time     *time.Time `json:"time,omitempty"`
	Location string     `json:"location,omitempty"`
}

type BookingDTO struct {
	ID                 string      `json:"id"`
	VehicleID          string      `json:"vehicle_id"`
	RenterID           string      `json:"renter_id"`
	HostID             string      `json:"host_id"`
	StartDate          string      `json:"start_date"`
	EndDate            string      `json:"end_date"`
	Status             string      `json:"status"`
	Total              MoneyDTO    `json:"total"`
	HostNotes          string      `json:"host_notes,omitempty"`
	CancellationReason string      `json:"cancellation_reason,omitempty"`
	Pickup             HandoverDTO `json:"pickup,omitempty"`
	Return             HandoverDTO `json:"return,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

type BookingCollection struct {
	Items []BookingDTO `json:"items"`
}

const dateLayout = "2006-01-02"

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

func mapHandover(h domainbooking.Handover) HandoverDTO {
	out := HandoverDTO{Location: h.Location}
	if !h.Time.IsZero() {
		t := h.Time
		out.Time = &t
	}
	return out
}

func MapBooking(b *domainbooking.Booking) BookingDTO {
	return BookingDTO{
		ID:                 string(b.ID),
		VehicleID:          b.VehicleID,
		RenterID:           b.RenterID,
		HostID:             b.HostID,
		StartDate:          b.Range.Start.Format(dateLayout),
		EndDate:            b.Range.End.Format(dateLayout),
		Status:             string(b.Status),
		Total:              MapMoney(b.Total),
		HostNotes:          b.HostNotes,
		CancellationReason: b.CancellationReason,
		Pickup:             mapHandover(b.Pickup),
		Return:             mapHandover(b.Return),
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]BookingDTO, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}
