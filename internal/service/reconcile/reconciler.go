package reconcile

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/internal/domain"
	"github.com/thejas/flightbook/internal/kafka"
)

// Ledger is the seat ledger operation the reconciler replays.
type Ledger interface {
	Release(ctx context.Context, flightID int64, seats int, opKey string) (int, error)
}

// SeenStore remembers op keys whose release already applied. It is a fast
// path in front of the ledger's own dedupe; keys are marked only after the
// release succeeds, so a crash mid-release leaves the event retryable.
type SeenStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	MarkSeen(ctx context.Context, key string) error
}

// Reconciler drains compensation_failed events: seat releases that could not
// be applied inline. Each event carries the original op key, so applying the
// release here is exactly-once no matter how often the event is redelivered.
type Reconciler struct {
	ledger      Ledger
	seen        SeenStore
	maxAttempts int
	backoff     time.Duration
	log         *logrus.Logger
}

func NewReconciler(ledger Ledger, seen SeenStore, maxAttempts int, log *logrus.Logger) *Reconciler {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Reconciler{
		ledger:      ledger,
		seen:        seen,
		maxAttempts: maxAttempts,
		backoff:     time.Second,
		log:         log,
	}
}

// Handle applies the compensating release carried by one event. It returns
// nil for every terminal outcome, including exhausted retries, so the
// partition keeps moving; an exhausted release is logged for manual
// reconciliation and its key stays unmarked.
func (r *Reconciler) Handle(ctx context.Context, msg kafkago.Message) error {
	var event kafka.CompensationFailedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		r.log.WithError(err).Warn("skipping malformed reconciliation event")
		return nil
	}

	entry := r.log.WithFields(logrus.Fields{
		"booking_id": event.BookingID,
		"flight_id":  event.FlightID,
		"seats":      event.NumSeats,
		"op_key":     event.OpKey,
	})

	if seen, err := r.seen.Seen(ctx, event.OpKey); err != nil {
		entry.WithError(err).Warn("dedupe check failed, relying on ledger op key")
	} else if seen {
		return nil
	}

	var err error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		_, err = r.ledger.Release(ctx, event.FlightID, event.NumSeats, event.OpKey)
		if err == nil {
			if markErr := r.seen.MarkSeen(ctx, event.OpKey); markErr != nil {
				entry.WithError(markErr).Warn("failed to mark op key applied")
			}
			entry.Info("compensating release applied")
			return nil
		}
		if !domain.IsKind(err, domain.KindInternal) && !domain.IsKind(err, domain.KindUpstream) {
			break
		}
		time.Sleep(time.Duration(attempt) * r.backoff)
	}

	entry.WithError(err).Error("compensating release exhausted retries, manual reconciliation required")
	return nil
}
