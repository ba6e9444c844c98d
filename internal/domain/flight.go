package domain

import "time"

type FlightStatus string

const (
	FlightStatusActive    FlightStatus = "ACTIVE"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

// Flight is the seat-inventory aggregate. AvailableSeats only ever moves
// through the ledger's Reserve/Release conditional updates; nothing else in
// the system writes the counter.
type Flight struct {
	ID             int64
	FlightNumber   string
	Airline        string
	Origin         string
	Destination    string
	DepartureTime  time.Time
	TotalSeats     int
	AvailableSeats int
	PriceCents     int64
	Status         FlightStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FlightSnapshot is the point-in-time view other services obtain over the
// wire. It carries no reference back to the aggregate.
type FlightSnapshot struct {
	ID             int64        `json:"id"`
	PriceCents     int64        `json:"price_cents"`
	AvailableSeats int          `json:"available_seats"`
	Status         FlightStatus `json:"status"`
}

func (f *Flight) Snapshot() FlightSnapshot {
	return FlightSnapshot{
		ID:             f.ID,
		PriceCents:     f.PriceCents,
		AvailableSeats: f.AvailableSeats,
		Status:         f.Status,
	}
}
