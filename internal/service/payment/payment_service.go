package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/client"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/kafka"
	"github.com/thejas/flightbook/internal/repository"
)

type PaymentUseCase interface {
	ProcessPayment(ctx context.Context, caller Caller, input ProcessPaymentInput) (*domain.Payment, error)
	Refund(ctx context.Context, caller Caller, paymentID string, refundCents int64) (*domain.Payment, error)
	GetPayment(ctx context.Context, caller Caller, paymentID string) (*domain.Payment, error)
	GetPaymentByBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Payment, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type Caller struct {
	auth.Identity
	Token string
}

type ProcessPaymentInput struct {
	BookingID   string               `json:"booking_id"`
	AmountCents int64                `json:"amount_cents"`
	Method      domain.PaymentMethod `json:"method"`
}

// PaymentService coordinates settlement: it validates the request against a
// booking snapshot, records a PROCESSING row before the gateway call so a
// crash mid-settlement stays auditable, and never deletes a failed attempt.
type PaymentService struct {
	payments     repository.PaymentRepository
	bookings     client.BookingAPI
	gateway      Gateway
	producer     Producer
	paymentTopic string
	log          *logrus.Logger
}

func NewPaymentService(
	payments repository.PaymentRepository,
	bookings client.BookingAPI,
	gateway Gateway,
	producer Producer,
	paymentTopic string,
	log *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		payments:     payments,
		bookings:     bookings,
		gateway:      gateway,
		producer:     producer,
		paymentTopic: paymentTopic,
		log:          log,
	}
}

func (s *PaymentService) ProcessPayment(ctx context.Context, caller Caller, input ProcessPaymentInput) (*domain.Payment, error) {
	if input.BookingID == "" {
		return nil, domain.E(domain.KindValidation, "booking id is required")
	}
	if input.AmountCents <= 0 {
		return nil, domain.E(domain.KindValidation, "amount must be positive")
	}
	if !input.Method.Valid() {
		return nil, domain.E(domain.KindValidation, "unknown payment method %q", input.Method)
	}

	booking, err := s.bookings.GetSnapshot(ctx, caller.Token, input.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusConfirmed {
		return nil, domain.E(domain.KindWrongState, "booking %s is %s, not payable", booking.ID, booking.Status)
	}
	if input.AmountCents != booking.TotalAmountCents {
		return nil, domain.E(domain.KindAmountMismatch, "expected %d, received %d", booking.TotalAmountCents, input.AmountCents)
	}
	if _, err := s.payments.GetByBookingID(ctx, input.BookingID); err == nil {
		return nil, domain.E(domain.KindDuplicatePayment, "payment already exists for booking %s", input.BookingID)
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}

	payment := &domain.Payment{
		ID:          uuid.NewString(),
		BookingID:   input.BookingID,
		PayerID:     caller.SubjectID,
		AmountCents: input.AmountCents,
		Method:      input.Method,
		Status:      domain.PaymentStatusProcessing,
	}
	// The unique index on booking_id closes the race the precheck leaves open.
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	transactionID, chargeErr := s.gateway.Charge(ctx, ChargeRequest{
		PaymentID:   payment.ID,
		BookingID:   payment.BookingID,
		AmountCents: payment.AmountCents,
		Method:      payment.Method,
	})
	if chargeErr != nil {
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = chargeErr.Error()
		if err := s.payments.RecordOutcome(ctx, payment); err != nil {
			s.log.WithError(err).WithField("payment_id", payment.ID).Error("failed to record settlement failure")
		}
		s.publish(ctx, kafka.EventPaymentFailed, payment)
		return nil, domain.Wrap(domain.KindUpstream, "payment gateway rejected the charge", chargeErr)
	}

	now := time.Now().UTC()
	payment.Status = domain.PaymentStatusSuccess
	payment.TransactionID = transactionID
	payment.SettledAt = &now
	if err := s.payments.RecordOutcome(ctx, payment); err != nil {
		// Money moved; the PROCESSING row plus logs are the audit trail.
		s.log.WithError(err).WithField("payment_id", payment.ID).Error("failed to record settlement success")
		return nil, domain.Wrap(domain.KindInternal, "settlement succeeded but could not be recorded", err)
	}
	s.publish(ctx, kafka.EventPaymentSucceeded, payment)

	if err := s.bookings.UpdateStatus(ctx, caller.Token, payment.BookingID, domain.BookingStatusPaid); err != nil {
		// The settlement is final and cannot be undone; surface the
		// inconsistency for manual reconciliation instead of hiding it.
		s.log.WithError(err).WithFields(logrus.Fields{
			"payment_id": payment.ID,
			"booking_id": payment.BookingID,
		}).Error("settlement recorded but booking status callback failed")
		return payment, domain.Wrap(domain.KindInternal, "payment settled but booking could not be marked paid", err)
	}

	return payment, nil
}

// Refund applies a cumulative refund. Allowed from SUCCESS or
// PARTIALLY_REFUNDED; the running total may never exceed the original
// amount, and reaching it exactly moves the payment to REFUNDED.
func (s *PaymentService) Refund(ctx context.Context, caller Caller, paymentID string, refundCents int64) (*domain.Payment, error) {
	if refundCents <= 0 {
		return nil, domain.E(domain.KindValidation, "refund amount must be positive")
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, payment.PayerID); err != nil {
		return nil, err
	}
	if !payment.Status.Refundable() {
		return nil, domain.E(domain.KindWrongState, "cannot refund payment with status %s", payment.Status)
	}

	total := payment.RefundAmountCents + refundCents
	if total > payment.AmountCents {
		return nil, domain.E(domain.KindInvalidRefund, "refund total %d would exceed payment amount %d", total, payment.AmountCents)
	}

	payment.RefundAmountCents = total
	if total == payment.AmountCents {
		payment.Status = domain.PaymentStatusRefunded
	} else {
		payment.Status = domain.PaymentStatusPartiallyRefunded
	}
	if err := s.payments.RecordRefund(ctx, payment); err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventPaymentRefunded, payment)
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, caller Caller, paymentID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, payment.PayerID); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) GetPaymentByBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Payment, error) {
	payment, err := s.payments.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, payment.PayerID); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) authorize(caller Caller, payerID string) error {
	if caller.SubjectID == payerID || caller.IsAdmin() {
		return nil
	}
	return domain.E(domain.KindUnauthorized, "caller does not own this payment")
}

func (s *PaymentService) publish(ctx context.Context, eventType string, payment *domain.Payment) {
	if s.producer == nil || s.paymentTopic == "" {
		return
	}
	event := kafka.PaymentEvent{
		Type:        eventType,
		PaymentID:   payment.ID,
		BookingID:   payment.BookingID,
		AmountCents: payment.AmountCents,
		Status:      string(payment.Status),
		Reason:      payment.FailureReason,
	}
	if err := s.producer.Publish(ctx, s.paymentTopic, payment.ID, event); err != nil {
		s.log.WithError(err).WithField("payment_id", payment.ID).Warnf("failed to publish %s event", eventType)
	}
}

var _ PaymentUseCase = (*PaymentService)(nil)
