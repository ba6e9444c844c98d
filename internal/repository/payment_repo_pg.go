package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thejas/flightbook/internal/domain"
)

type PaymentRepository interface {
	// Create inserts the PROCESSING audit row. The unique index on
	// booking_id enforces at most one payment per booking; a violation
	// surfaces as DuplicatePayment.
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error)
	RecordOutcome(ctx context.Context, payment *domain.Payment) error
	RecordRefund(ctx context.Context, payment *domain.Payment) error
}

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &PGPaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, payer_id, amount_cents, method, status, transaction_id, refund_amount_cents, failure_reason, settled_at, created_at, updated_at`

func scanPayment(row pgx.Row, p *domain.Payment) error {
	return row.Scan(&p.ID, &p.BookingID, &p.PayerID, &p.AmountCents, &p.Method, &p.Status, &p.TransactionID, &p.RefundAmountCents, &p.FailureReason, &p.SettledAt, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PGPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO payments (id, booking_id, payer_id, amount_cents, method, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		payment.ID, payment.BookingID, payment.PayerID, payment.AmountCents, payment.Method, payment.Status).
		Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.E(domain.KindDuplicatePayment, "payment already exists for booking %s", payment.BookingID)
		}
		return err
	}
	return nil
}

func (r *PGPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	var p domain.Payment
	if err := scanPayment(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "payment %s not found", id)
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGPaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id=$1`, bookingID)
	var p domain.Payment
	if err := scanPayment(row, &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.E(domain.KindNotFound, "payment not found for booking %s", bookingID)
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGPaymentRepository) RecordOutcome(ctx context.Context, payment *domain.Payment) error {
	return r.db.QueryRow(ctx, `UPDATE payments SET status=$2, transaction_id=$3, failure_reason=$4, settled_at=$5, updated_at=now() WHERE id=$1 RETURNING updated_at`,
		payment.ID, payment.Status, payment.TransactionID, payment.FailureReason, payment.SettledAt).
		Scan(&payment.UpdatedAt)
}

func (r *PGPaymentRepository) RecordRefund(ctx context.Context, payment *domain.Payment) error {
	return r.db.QueryRow(ctx, `UPDATE payments SET status=$2, refund_amount_cents=$3, updated_at=now() WHERE id=$1 RETURNING updated_at`,
		payment.ID, payment.Status, payment.RefundAmountCents).
		Scan(&payment.UpdatedAt)
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)
