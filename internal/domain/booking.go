package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// bookingTransitions is the closed transition table. Any status write not
// listed here is rejected; there is no generic "set status" path.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusPaid, BookingStatusCancelled},
	BookingStatusPaid:      {BookingStatusCancelled},
	BookingStatusCancelled: {},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusPaid, BookingStatusCancelled:
		return true
	}
	return false
}

// Booking holds NumSeats against its flight's inventory from the moment the
// reservation commits until the booking is cancelled. TotalAmountCents is
// price*seats evaluated once at creation and never recomputed.
type Booking struct {
	ID               string
	OwnerID          string
	FlightID         int64
	NumSeats         int
	TotalAmountCents int64
	Status           BookingStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BookingSnapshot is the wire view the payment service validates against.
type BookingSnapshot struct {
	ID               string        `json:"id"`
	OwnerID          string        `json:"owner_id"`
	FlightID         int64         `json:"flight_id"`
	NumSeats         int           `json:"num_seats"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	Status           BookingStatus `json:"status"`
}

func (b *Booking) Snapshot() BookingSnapshot {
	return BookingSnapshot{
		ID:               b.ID,
		OwnerID:          b.OwnerID,
		FlightID:         b.FlightID,
		NumSeats:         b.NumSeats,
		TotalAmountCents: b.TotalAmountCents,
		Status:           b.Status,
	}
}
