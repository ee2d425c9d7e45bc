package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OutboxStatus string

const (
	OutboxPending   OutboxStatus = "PENDING"
	OutboxDelivered OutboxStatus = "DELIVERED"
	OutboxDead      OutboxStatus = "DEAD"
)

// OutboxEvent is a message written in the same transaction as the state change it describes.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events"`

	ID            string       `bun:"id,pk"`
	Topic         string       `bun:"topic,notnull"`
	Key           string       `bun:"key,notnull"`
	Payload       []byte       `bun:"payload,notnull"`
	Status        OutboxStatus `bun:"status,notnull"`
	Attempts      int          `bun:"attempts,notnull"`
	NextAttemptAt time.Time    `bun:"next_attempt_at,notnull"`
	LastError     string       `bun:"last_error,nullzero"`
	CreatedAt     time.Time    `bun:"created_at,notnull"`
	DeliveredAt   time.Time    `bun:"delivered_at,nullzero"`
}

type BookingEventKind string

const (
	EventBookingCreated   BookingEventKind = "booking.created"
	EventBookingCancelled BookingEventKind = "booking.cancelled"
	EventPaymentVerified  BookingEventKind = "booking.payment_verified"
)

// BookingEvent is the payload published for every booking notification hook.
type BookingEvent struct {
	EventID    string           `json:"eventId"`
	Kind       BookingEventKind `json:"kind"`
	OccurredAt time.Time        `json:"occurredAt"`
	Reason     string           `json:"reason,omitempty"`
	Booking    Booking          `json:"booking"`
}

// NotificationLog records a delivered notification; (event_id, channel) is unique.
type NotificationLog struct {
	bun.BaseModel `bun:"table:notification_log"`

	EventID   string           `bun:"event_id,pk"`
	Channel   string           `bun:"channel,pk"`
	BookingID string           `bun:"booking_id,notnull"`
	Kind      BookingEventKind `bun:"kind,notnull"`
	SentAt    time.Time        `bun:"sent_at,notnull"`
}
