package flights

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/repository"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error)
	CancelFlight(ctx context.Context, id int64) (*domain.Flight, error)
	Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error)
	Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error)
}

type Cache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	InvalidateFlights(ctx context.Context) error
}

type CreateFlightInput struct {
	FlightNumber  string `json:"flight_number"`
	Airline       string `json:"airline"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	TotalSeats    int    `json:"total_seats"`
	PriceCents    int64  `json:"price_cents"`
}

// FlightService fronts the seat inventory ledger. All seat movement goes
// through Reserve/Release; the repository guarantees the bound checks and
// op-key dedupe atomically.
type FlightService struct {
	repo  repository.FlightRepository
	cache Cache
	log   *logrus.Logger
}

func NewFlightService(repo repository.FlightRepository, cache Cache, log *logrus.Logger) *FlightService {
	return &FlightService{repo: repo, cache: cache, log: log}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *FlightService) Create(ctx context.Context, input CreateFlightInput) (*domain.Flight, error) {
	if input.TotalSeats <= 0 {
		return nil, domain.E(domain.KindValidation, "total seats must be positive")
	}
	if input.PriceCents < 0 {
		return nil, domain.E(domain.KindValidation, "price must not be negative")
	}
	if input.FlightNumber == "" {
		return nil, domain.E(domain.KindValidation, "flight number is required")
	}

	departure, err := time.Parse(time.RFC3339, input.DepartureTime)
	if err != nil {
		return nil, domain.E(domain.KindValidation, "invalid departure time: %v", err)
	}

	flight := &domain.Flight{
		FlightNumber:  input.FlightNumber,
		Airline:       input.Airline,
		Origin:        input.Origin,
		Destination:   input.Destination,
		DepartureTime: departure,
		TotalSeats:    input.TotalSeats,
		PriceCents:    input.PriceCents,
	}
	if err := s.repo.Create(ctx, flight); err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}

	s.log.WithFields(logrus.Fields{"flight_id": flight.ID, "total_seats": flight.TotalSeats}).Info("flight created")
	return flight, nil
}

func (s *FlightService) CancelFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	flight, err := s.repo.CancelFlight(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
	s.log.WithField("flight_id", id).Info("flight cancelled")
	return flight, nil
}

func (s *FlightService) Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	if seats <= 0 {
		return 0, domain.E(domain.KindValidation, "seats must be positive")
	}
	available, err := s.repo.Reserve(ctx, flightID, seats, opKey)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
	s.log.WithFields(logrus.Fields{"flight_id": flightID, "seats": seats, "op_key": opKey, "available": available}).Info("seats reserved")
	return available, nil
}

func (s *FlightService) Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	if seats <= 0 {
		return 0, domain.E(domain.KindValidation, "seats must be positive")
	}
	available, err := s.repo.Release(ctx, flightID, seats, opKey)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		_ = s.cache.InvalidateFlights(ctx)
	}
	s.log.WithFields(logrus.Fields{"flight_id": flightID, "seats": seats, "op_key": opKey, "available": available}).Info("seats released")
	return available, nil
}

var _ FlightUseCase = (*FlightService)(nil)
