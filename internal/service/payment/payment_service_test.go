package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/thejas/flightbook/internal/auth"
	"github.com/thejas/flightbook/internal/domain"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) RecordOutcome(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) RecordRefund(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

type MockBookingAPI struct {
	mock.Mock
}

func (m *MockBookingAPI) GetSnapshot(ctx context.Context, token, bookingID string) (*domain.BookingSnapshot, error) {
	args := m.Called(ctx, token, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BookingSnapshot), args.Error(1)
}

func (m *MockBookingAPI) UpdateStatus(ctx context.Context, token, bookingID string, status domain.BookingStatus) error {
	args := m.Called(ctx, token, bookingID, status)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestService(payments *MockPaymentRepository, bookings *MockBookingAPI, gateway *MockGateway, producer *MockProducer) *PaymentService {
	log := logrus.New()
	log.SetOutput(discardWriter{})
	return NewPaymentService(payments, bookings, gateway, producer, "payment_events", log)
}

func payerCaller() Caller {
	return Caller{Identity: auth.Identity{SubjectID: "user-1", Roles: []string{"USER"}}, Token: "tok"}
}

func confirmedSnapshot() *domain.BookingSnapshot {
	return &domain.BookingSnapshot{
		ID:               "b-1",
		OwnerID:          "user-1",
		FlightID:         4,
		NumSeats:         3,
		TotalAmountCents: 37500,
		Status:           domain.BookingStatusConfirmed,
	}
}

func TestProcessPayment_Success(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingAPI{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, bookings, gateway, producer)

	ctx := context.Background()
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(confirmedSnapshot(), nil).Once()
	payments.On("GetByBookingID", ctx, "b-1").Return(nil, domain.E(domain.KindNotFound, "no payment")).Once()
	payments.On("Create", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusProcessing && p.BookingID == "b-1"
	})).Return(nil).Once()
	gateway.On("Charge", ctx, mock.MatchedBy(func(req ChargeRequest) bool {
		return req.BookingID == "b-1" && req.AmountCents == 37500
	})).Return("TXN_abc", nil).Once()
	payments.On("RecordOutcome", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusSuccess && p.TransactionID == "TXN_abc" && p.SettledAt != nil
	})).Return(nil).Once()
	producer.On("Publish", ctx, "payment_events", mock.Anything, mock.Anything).Return(nil).Once()
	bookings.On("UpdateStatus", ctx, "tok", "b-1", domain.BookingStatusPaid).Return(nil).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 37500,
		Method:      domain.PaymentMethodCreditCard,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "user-1", payment.PayerID)
	payments.AssertExpectations(t)
	bookings.AssertExpectations(t)
	gateway.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestProcessPayment_AmountMismatch(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingAPI{}
	service := newTestService(payments, bookings, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(confirmedSnapshot(), nil).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 30000,
		Method:      domain.PaymentMethodUPI,
	})

	assert.Nil(t, payment)
	assert.True(t, domain.IsKind(err, domain.KindAmountMismatch))
	payments.AssertNotCalled(t, "Create")
}

func TestProcessPayment_UnpayableBooking(t *testing.T) {
	bookings := &MockBookingAPI{}
	service := newTestService(&MockPaymentRepository{}, bookings, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	snap := confirmedSnapshot()
	snap.Status = domain.BookingStatusCancelled
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(snap, nil).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 37500,
		Method:      domain.PaymentMethodUPI,
	})

	assert.Nil(t, payment)
	assert.True(t, domain.IsKind(err, domain.KindWrongState))
}

func TestProcessPayment_DuplicateRejected(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingAPI{}
	gateway := &MockGateway{}
	service := newTestService(payments, bookings, gateway, &MockProducer{})

	ctx := context.Background()
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(confirmedSnapshot(), nil).Once()
	payments.On("GetByBookingID", ctx, "b-1").
		Return(&domain.Payment{ID: "p-0", BookingID: "b-1", Status: domain.PaymentStatusSuccess}, nil).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 37500,
		Method:      domain.PaymentMethodCreditCard,
	})

	assert.Nil(t, payment)
	assert.True(t, domain.IsKind(err, domain.KindDuplicatePayment))
	gateway.AssertNotCalled(t, "Charge")
}

func TestProcessPayment_GatewayFailureKeepsFailedRow(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingAPI{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, bookings, gateway, producer)

	ctx := context.Background()
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(confirmedSnapshot(), nil).Once()
	payments.On("GetByBookingID", ctx, "b-1").Return(nil, domain.E(domain.KindNotFound, "no payment")).Once()
	payments.On("Create", ctx, mock.Anything).Return(nil).Once()
	gateway.On("Charge", ctx, mock.Anything).Return("", errors.New("card declined")).Once()
	payments.On("RecordOutcome", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusFailed && p.FailureReason == "card declined"
	})).Return(nil).Once()
	producer.On("Publish", ctx, "payment_events", mock.Anything, mock.Anything).Return(nil).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 37500,
		Method:      domain.PaymentMethodCreditCard,
	})

	assert.Nil(t, payment)
	assert.True(t, domain.IsKind(err, domain.KindUpstream))
	payments.AssertExpectations(t)
	bookings.AssertNotCalled(t, "UpdateStatus")
}

func TestProcessPayment_CallbackFailureSurfacesPayment(t *testing.T) {
	payments := &MockPaymentRepository{}
	bookings := &MockBookingAPI{}
	gateway := &MockGateway{}
	producer := &MockProducer{}
	service := newTestService(payments, bookings, gateway, producer)

	ctx := context.Background()
	bookings.On("GetSnapshot", ctx, "tok", "b-1").Return(confirmedSnapshot(), nil).Once()
	payments.On("GetByBookingID", ctx, "b-1").Return(nil, domain.E(domain.KindNotFound, "no payment")).Once()
	payments.On("Create", ctx, mock.Anything).Return(nil).Once()
	gateway.On("Charge", ctx, mock.Anything).Return("TXN_abc", nil).Once()
	payments.On("RecordOutcome", ctx, mock.Anything).Return(nil).Once()
	producer.On("Publish", ctx, "payment_events", mock.Anything, mock.Anything).Return(nil).Once()
	bookings.On("UpdateStatus", ctx, "tok", "b-1", domain.BookingStatusPaid).
		Return(domain.E(domain.KindUpstream, "booking service unreachable")).Once()

	payment, err := service.ProcessPayment(ctx, payerCaller(), ProcessPaymentInput{
		BookingID:   "b-1",
		AmountCents: 37500,
		Method:      domain.PaymentMethodCreditCard,
	})

	assert.NotNil(t, payment)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.True(t, domain.IsKind(err, domain.KindInternal))
}

func TestRefund_PartialThenFull(t *testing.T) {
	payments := &MockPaymentRepository{}
	producer := &MockProducer{}
	service := newTestService(payments, &MockBookingAPI{}, &MockGateway{}, producer)

	ctx := context.Background()
	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "user-1", AmountCents: 10000, Status: domain.PaymentStatusSuccess}, nil).Once()
	payments.On("RecordRefund", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusPartiallyRefunded && p.RefundAmountCents == 4000
	})).Return(nil).Once()
	producer.On("Publish", ctx, "payment_events", mock.Anything, mock.Anything).Return(nil)

	partial, err := service.Refund(ctx, payerCaller(), "p-1", 4000)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPartiallyRefunded, partial.Status)

	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "user-1", AmountCents: 10000, RefundAmountCents: 4000, Status: domain.PaymentStatusPartiallyRefunded}, nil).Once()
	payments.On("RecordRefund", ctx, mock.MatchedBy(func(p *domain.Payment) bool {
		return p.Status == domain.PaymentStatusRefunded && p.RefundAmountCents == 10000
	})).Return(nil).Once()

	full, err := service.Refund(ctx, payerCaller(), "p-1", 6000)
	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, full.Status)
	payments.AssertExpectations(t)
}

func TestRefund_TotalMayNotExceedAmount(t *testing.T) {
	payments := &MockPaymentRepository{}
	service := newTestService(payments, &MockBookingAPI{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "user-1", AmountCents: 10000, RefundAmountCents: 7000, Status: domain.PaymentStatusPartiallyRefunded}, nil).Once()

	refunded, err := service.Refund(ctx, payerCaller(), "p-1", 4000)

	assert.Nil(t, refunded)
	assert.True(t, domain.IsKind(err, domain.KindInvalidRefund))
	payments.AssertNotCalled(t, "RecordRefund")
}

func TestRefund_WrongState(t *testing.T) {
	payments := &MockPaymentRepository{}
	service := newTestService(payments, &MockBookingAPI{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "user-1", AmountCents: 10000, Status: domain.PaymentStatusFailed}, nil).Once()

	refunded, err := service.Refund(ctx, payerCaller(), "p-1", 1000)

	assert.Nil(t, refunded)
	assert.True(t, domain.IsKind(err, domain.KindWrongState))
}

func TestRefund_Unauthorized(t *testing.T) {
	payments := &MockPaymentRepository{}
	service := newTestService(payments, &MockBookingAPI{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "someone-else", AmountCents: 10000, Status: domain.PaymentStatusSuccess}, nil).Once()

	refunded, err := service.Refund(ctx, payerCaller(), "p-1", 1000)

	assert.Nil(t, refunded)
	assert.True(t, domain.IsKind(err, domain.KindUnauthorized))
}

func TestGetPayment_AdminBypassesOwnership(t *testing.T) {
	payments := &MockPaymentRepository{}
	service := newTestService(payments, &MockBookingAPI{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	payments.On("GetByID", ctx, "p-1").
		Return(&domain.Payment{ID: "p-1", PayerID: "user-1", AmountCents: 10000, Status: domain.PaymentStatusSuccess}, nil).Once()

	admin := Caller{Identity: auth.Identity{SubjectID: "admin-1", Roles: []string{auth.RoleAdmin}}, Token: "tok"}
	payment, err := service.GetPayment(ctx, admin, "p-1")

	assert.NoError(t, err)
	assert.Equal(t, "p-1", payment.ID)
}
