package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	EventBookingCreated     = "booking_created"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingPaid        = "booking_paid"
	EventPaymentSucceeded   = "payment_succeeded"
	EventPaymentFailed      = "payment_failed"
	EventPaymentRefunded    = "payment_refunded"
	EventCompensationFailed = "compensation_failed"
)

type BookingEvent struct {
	Type        string `json:"type"`
	BookingID   string `json:"booking_id"`
	FlightID    int64  `json:"flight_id"`
	NumSeats    int    `json:"num_seats"`
	OwnerID     string `json:"owner_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents,omitempty"`
}

type PaymentEvent struct {
	Type        string `json:"type"`
	PaymentID   string `json:"payment_id"`
	BookingID   string `json:"booking_id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// CompensationFailedEvent is published when an undo of a committed remote
// effect could not be applied. The worker retries the release with the same
// op key so the eventual application stays exactly-once.
type CompensationFailedEvent struct {
	Type      string `json:"type"`
	BookingID string `json:"booking_id"`
	FlightID  int64  `json:"flight_id"`
	NumSeats  int    `json:"num_seats"`
	OpKey     string `json:"op_key"`
	Reason    string `json:"reason"`
}

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
}

func (p *Producer) PublishWithRetry(ctx context.Context, topic, key string, payload interface{}, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = p.Publish(ctx, topic, key, payload); lastErr == nil {
			return nil
		}
		if i < maxRetries-1 {
			time.Sleep(time.Duration(i+1) * 500 * time.Millisecond)
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
