package booking

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"quarterdeck-booking/internal/models"
)

func (s *Service) topicFor(kind models.BookingEventKind) string {
	switch kind {
	case models.EventBookingCreated:
		return s.opts.Topics.BookingCreated
	case models.EventBookingCancelled:
		return s.opts.Topics.BookingCancelled
	case models.EventPaymentVerified:
		return s.opts.Topics.PaymentVerified
	}
	return ""
}

// newEvent snapshots b into an outbox row keyed by booking id, so every event of
// one booking lands on the same partition.
func (s *Service) newEvent(kind models.BookingEventKind, b models.Booking, reason string) (*models.OutboxEvent, error) {
	topic := s.topicFor(kind)
	if topic == "" {
		return nil, fmt.Errorf("no topic configured for %s", kind)
	}

	now := s.now().UTC()
	ev := models.BookingEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		OccurredAt: now,
		Reason:     reason,
		Booking:    b,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", kind, err)
	}

	return &models.OutboxEvent{
		ID:            ev.EventID,
		Topic:         topic,
		Key:           b.ID,
		Payload:       payload,
		Status:        models.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}, nil
}
