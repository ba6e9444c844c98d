package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thejas/flightbook/internal/domain"
)

// FlightRepository owns the seat ledger. Reserve and Release are the only
// paths that touch available_seats, both as single conditional updates so
// two concurrent reservations can never both commit past capacity.
type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	CancelFlight(ctx context.Context, id int64) (*domain.Flight, error)
	Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error)
	Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error)
}

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

const flightColumns = `id, flight_number, airline, origin, destination, departure_time, total_seats, available_seats, price_cents, status, created_at, updated_at`

func scanFlight(row pgx.Row, f *domain.Flight) error {
	return row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.Origin, &f.Destination, &f.DepartureTime, &f.TotalSeats, &f.AvailableSeats, &f.PriceCents, &f.Status, &f.CreatedAt, &f.UpdatedAt)
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		var f domain.Flight
		if err := scanFlight(rows, &f); err != nil {
			return nil, err
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id)
	var f domain.Flight
	if err := scanFlight(row, &f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "flight %d not found", id)
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flight *domain.Flight) error {
	flight.Status = domain.FlightStatusActive
	flight.AvailableSeats = flight.TotalSeats
	return r.db.QueryRow(ctx, `INSERT INTO flights (flight_number, airline, origin, destination, departure_time, total_seats, available_seats, price_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		flight.FlightNumber, flight.Airline, flight.Origin, flight.Destination, flight.DepartureTime,
		flight.TotalSeats, flight.AvailableSeats, flight.PriceCents, flight.Status).
		Scan(&flight.ID, &flight.CreatedAt, &flight.UpdatedAt)
}

func (r *PGFlightRepository) CancelFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `UPDATE flights SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+flightColumns, domain.FlightStatusCancelled, id)
	var f domain.Flight
	if err := scanFlight(row, &f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "flight %d not found", id)
		}
		return nil, err
	}
	return &f, nil
}

// Reserve atomically decrements available_seats by seats. The op key is
// recorded in seat_operations inside the same transaction; a retried call
// with the same key is a no-op returning the count the first call produced.
func (r *PGFlightRepository) Reserve(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	return r.applySeatDelta(ctx, flightID, -seats, opKey)
}

// Release atomically increments available_seats by seats, bounded by
// total_seats so a duplicate release with a fresh key cannot over-credit.
func (r *PGFlightRepository) Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error) {
	return r.applySeatDelta(ctx, flightID, seats, opKey)
}

func (r *PGFlightRepository) applySeatDelta(ctx context.Context, flightID int64, delta int, opKey string) (int, error) {
	if opKey == "" {
		return 0, domain.E(domain.KindValidation, "operation key is required")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `INSERT INTO seat_operations (op_key, flight_id, delta) VALUES ($1, $2, $3) ON CONFLICT (op_key) DO NOTHING`, opKey, flightID, delta)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		// Duplicate of an already-applied operation.
		var available int
		if err := tx.QueryRow(ctx, `SELECT available_after FROM seat_operations WHERE op_key=$1`, opKey).Scan(&available); err != nil {
			return 0, err
		}
		return available, tx.Commit(ctx)
	}

	var available int
	err = tx.QueryRow(ctx, `UPDATE flights
		SET available_seats = available_seats + $2, updated_at = now()
		WHERE id = $1 AND available_seats + $2 >= 0 AND available_seats + $2 <= total_seats
		RETURNING available_seats`, flightID, delta).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.classifyRejection(ctx, tx, flightID, delta)
		}
		return 0, err
	}

	if _, err := tx.Exec(ctx, `UPDATE seat_operations SET available_after=$2 WHERE op_key=$1`, opKey, available); err != nil {
		return 0, err
	}
	return available, tx.Commit(ctx)
}

// classifyRejection distinguishes an unknown flight from a bound violation
// after the conditional update matched no row. The transaction is rolled
// back by the caller either way.
func (r *PGFlightRepository) classifyRejection(ctx context.Context, tx pgx.Tx, flightID int64, delta int) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM flights WHERE id=$1)`, flightID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.E(domain.KindNotFound, "flight %d not found", flightID)
	}
	if delta < 0 {
		return domain.E(domain.KindInsufficientInventory, "not enough seats on flight %d", flightID)
	}
	return domain.E(domain.KindCapacityExceeded, "release would exceed capacity of flight %d", flightID)
}

var _ FlightRepository = (*PGFlightRepository)(nil)
