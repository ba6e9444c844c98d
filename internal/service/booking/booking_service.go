package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/client"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/kafka"
	"github.com/thejas/flightbook/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, caller Caller, input CreateBookingInput) (*domain.Booking, error)
	CancelBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Booking, error)
	GetBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Booking, error)
	ListBookings(ctx context.Context, caller Caller) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, caller Caller, bookingID string, status domain.BookingStatus) (*domain.Booking, error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

// Caller is the verified identity plus the raw credential, relayed on
// cross-service calls the way the upstream services expect it.
type Caller struct {
	auth.Identity
	Token string
}

type CreateBookingInput struct {
	FlightID int64 `json:"flight_id"`
	NumSeats int   `json:"num_seats"`
}

// BookingService orchestrates the booking saga. Each remote step is
// idempotent under a stable op key derived from the booking id, so a step
// whose outcome is unknown can be retried without duplicating its effect.
type BookingService struct {
	bookings            repository.BookingRepository
	flights             client.FlightAPI
	producer            Producer
	bookingTopic        string
	reconciliationTopic string
	log                 *logrus.Logger
}

func NewBookingService(
	bookings repository.BookingRepository,
	flights client.FlightAPI,
	producer Producer,
	bookingTopic, reconciliationTopic string,
	log *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings:            bookings,
		flights:             flights,
		producer:            producer,
		bookingTopic:        bookingTopic,
		reconciliationTopic: reconciliationTopic,
		log:                 log,
	}
}

func reserveOpKey(bookingID string) string { return "res:" + bookingID }
func releaseOpKey(bookingID string) string { return "rel:" + bookingID }

// CreateBooking runs the forward saga: snapshot, reserve, persist. A failed
// reserve leaves no booking; a failed persist after a committed reserve
// triggers the release compensation.
func (s *BookingService) CreateBooking(ctx context.Context, caller Caller, input CreateBookingInput) (*domain.Booking, error) {
	if input.NumSeats <= 0 {
		return nil, domain.E(domain.KindValidation, "number of seats must be positive")
	}

	snap, err := s.flights.GetSnapshot(ctx, caller.Token, input.FlightID)
	if err != nil {
		return nil, err
	}
	if snap.Status != domain.FlightStatusActive {
		return nil, domain.E(domain.KindValidation, "flight %d is not open for booking", input.FlightID)
	}
	if input.NumSeats > snap.AvailableSeats {
		return nil, domain.E(domain.KindInsufficientInventory, "flight %d has %d seats available", input.FlightID, snap.AvailableSeats)
	}

	booking := &domain.Booking{
		ID:               uuid.NewString(),
		OwnerID:          caller.SubjectID,
		FlightID:         input.FlightID,
		NumSeats:         input.NumSeats,
		TotalAmountCents: snap.PriceCents * int64(input.NumSeats),
		Status:           domain.BookingStatusConfirmed,
	}

	if _, err := s.flights.Reserve(ctx, caller.Token, input.FlightID, input.NumSeats, reserveOpKey(booking.ID)); err != nil {
		// Nothing persisted locally; the ledger either rejected the
		// reservation or never applied it (op key never reused).
		return nil, err
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		s.log.WithError(err).WithField("booking_id", booking.ID).Error("booking persist failed after reservation, compensating")
		if _, relErr := s.flights.Release(ctx, caller.Token, input.FlightID, input.NumSeats, releaseOpKey(booking.ID)); relErr != nil {
			s.escalateCompensation(ctx, booking, releaseOpKey(booking.ID), relErr)
			return nil, domain.Wrap(domain.KindInternal, "booking failed and seat release compensation failed, queued for reconciliation", relErr)
		}
		return nil, domain.Wrap(domain.KindInternal, "failed to persist booking", err)
	}

	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

// CancelBooking releases the held seats and marks the booking cancelled.
// Release runs first: with an idempotent release a retried cancel cannot
// double-credit, while the reverse order could strand seats forever.
func (s *BookingService) CancelBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, booking.OwnerID); err != nil {
		return nil, err
	}
	if booking.Status == domain.BookingStatusCancelled {
		return booking, nil
	}

	if _, err := s.flights.Release(ctx, caller.Token, booking.FlightID, booking.NumSeats, releaseOpKey(booking.ID)); err != nil {
		return nil, err
	}

	updated, err := s.bookings.UpdateStatus(ctx, bookingID, booking.Status, domain.BookingStatusCancelled)
	if err != nil {
		if domain.IsKind(err, domain.KindWrongState) {
			// A concurrent cancel won the status write; seats were
			// released exactly once via the shared op key.
			current, getErr := s.bookings.GetByID(ctx, bookingID)
			if getErr == nil && current.Status == domain.BookingStatusCancelled {
				return current, nil
			}
		}
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingCancelled, updated)
	return updated, nil
}

func (s *BookingService) GetBooking(ctx context.Context, caller Caller, bookingID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, booking.OwnerID); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, caller Caller) ([]domain.Booking, error) {
	return s.bookings.ListByOwner(ctx, caller.SubjectID)
}

// UpdateStatus is the settlement callback. PAID is the only status it may
// set: the callback has no inventory effect, so letting it cancel would
// strand the seats the booking still holds. Cancellation goes through
// CancelBooking, which releases first.
func (s *BookingService) UpdateStatus(ctx context.Context, caller Caller, bookingID string, status domain.BookingStatus) (*domain.Booking, error) {
	if status != domain.BookingStatusPaid {
		return nil, domain.E(domain.KindValidation, "status callback cannot set %q, only %s", status, domain.BookingStatusPaid)
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, booking.OwnerID); err != nil {
		return nil, err
	}
	if !booking.Status.CanTransitionTo(status) {
		return nil, domain.E(domain.KindWrongState, "booking %s cannot move from %s to %s", bookingID, booking.Status, status)
	}

	updated, err := s.bookings.UpdateStatus(ctx, bookingID, booking.Status, status)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, kafka.EventBookingPaid, updated)
	return updated, nil
}

func authorize(caller Caller, ownerID string) error {
	if caller.SubjectID == ownerID || caller.IsAdmin() {
		return nil
	}
	return domain.E(domain.KindUnauthorized, "caller does not own this booking")
}

// escalateCompensation hands a failed undo to the reconciliation worker.
// The event carries the original op key so the eventual release applies at
// most once no matter how many retries it takes.
func (s *BookingService) escalateCompensation(ctx context.Context, booking *domain.Booking, opKey string, cause error) {
	event := kafka.CompensationFailedEvent{
		Type:      kafka.EventCompensationFailed,
		BookingID: booking.ID,
		FlightID:  booking.FlightID,
		NumSeats:  booking.NumSeats,
		OpKey:     opKey,
		Reason:    cause.Error(),
	}
	if err := s.producer.PublishWithRetry(ctx, s.reconciliationTopic, booking.ID, event, 3); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"flight_id":  booking.FlightID,
			"op_key":     opKey,
		}).Error("failed to queue compensation for reconciliation, manual intervention required")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:        eventType,
		BookingID:   booking.ID,
		FlightID:    booking.FlightID,
		NumSeats:    booking.NumSeats,
		OwnerID:     booking.OwnerID,
		Status:      string(booking.Status),
		AmountCents: booking.TotalAmountCents,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.ID, event); err != nil {
		s.log.WithError(err).WithField("booking_id", booking.ID).Warnf("failed to publish %s event", eventType)
	}
}

var _ BookingUseCase = (*BookingService)(nil)
