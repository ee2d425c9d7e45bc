package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

// Log is the persistent dedup record of sent notifications.
type Log interface {
	// Reserve records (event, channel) and reports false if it was already recorded.
	Reserve(ctx context.Context, entry *models.NotificationLog) (bool, error)
	// Release drops a reservation whose send failed so a redelivery can retry it.
	Release(ctx context.Context, eventID, channel string) error
}

type Message struct {
	BookingID string
	Kind      models.BookingEventKind
	To        string
	Subject   string
	Body      string
}

type Sender interface {
	Channel() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans booking events out to every sender, at most once per
// (event, channel) even when the broker redelivers.
type Dispatcher struct {
	Log     Log
	Senders []Sender
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewDispatcher(log Log, l *logger.Logger, senders ...Sender) *Dispatcher {
	return &Dispatcher{Log: log, Senders: senders, Logger: l, Now: time.Now}
}

// HandleMessage adapts the dispatcher to the kafka consumer.
func (d *Dispatcher) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var ev models.BookingEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// A malformed payload will never parse; retrying cannot help.
		d.Logger.Error("NOTIFY", fmt.Sprintf("Dropping unreadable message on %s at offset %d: %v", msg.Topic, msg.Offset, err))
		return nil
	}
	return d.Dispatch(ctx, ev)
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev models.BookingEvent) error {
	if ev.EventID == "" {
		d.Logger.Warn("NOTIFY", fmt.Sprintf("Ignoring %s event without id", ev.Kind))
		return nil
	}
	msg, ok := Render(ev)
	if !ok {
		d.Logger.Debug("NOTIFY", fmt.Sprintf("No notification for event kind %s", ev.Kind))
		return nil
	}

	for _, s := range d.Senders {
		entry := &models.NotificationLog{
			EventID:   ev.EventID,
			Channel:   s.Channel(),
			BookingID: ev.Booking.ID,
			Kind:      ev.Kind,
			SentAt:    d.Now().UTC(),
		}
		fresh, err := d.Log.Reserve(ctx, entry)
		if err != nil {
			return fmt.Errorf("reserve notification %s/%s: %w", ev.EventID, s.Channel(), err)
		}
		if !fresh {
			d.Logger.Debug("NOTIFY", fmt.Sprintf("Skipping duplicate %s for event %s", s.Channel(), ev.EventID))
			continue
		}

		if err := s.Send(ctx, msg); err != nil {
			if rerr := d.Log.Release(context.WithoutCancel(ctx), ev.EventID, s.Channel()); rerr != nil {
				d.Logger.Error("NOTIFY", fmt.Sprintf("Failed to release %s/%s: %v", ev.EventID, s.Channel(), rerr))
			}
			return fmt.Errorf("send %s via %s: %w", ev.Kind, s.Channel(), err)
		}
	}
	return nil
}

// Render builds the plain-text notice for a booking event.
func Render(ev models.BookingEvent) (Message, bool) {
	b := ev.Booking
	when := fmt.Sprintf("%s %s-%s", b.Date, b.StartTime, b.EndTime)
	msg := Message{BookingID: b.ID, Kind: ev.Kind, To: b.UserID}

	switch ev.Kind {
	case models.EventBookingCreated:
		msg.Subject = "Booking received"
		msg.Body = fmt.Sprintf("Your booking %s for %s resource %d on %s is pending payment. Total due: %s (%s).",
			b.ID, b.FacilityID, b.ResourceID, when, FormatAmount(b.TotalPrice), b.PaymentMethod)
	case models.EventPaymentVerified:
		msg.Subject = "Booking confirmed"
		msg.Body = fmt.Sprintf("Payment for booking %s was verified. %s resource %d is yours on %s.",
			b.ID, b.FacilityID, b.ResourceID, when)
	case models.EventBookingCancelled:
		msg.Subject = "Booking cancelled"
		msg.Body = fmt.Sprintf("Booking %s for %s resource %d on %s was cancelled.", b.ID, b.FacilityID, b.ResourceID, when)
		if ev.Reason != "" {
			msg.Body += " Reason: " + ev.Reason
		}
	default:
		return Message{}, false
	}
	return msg, true
}

// FormatAmount renders minor currency units as a decimal amount.
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// LogSender writes notifications to the service log instead of a mail relay.
type LogSender struct {
	Logger *logger.Logger
}

func (s LogSender) Channel() string { return "log" }

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.LogBooking("NOTIFY", msg.BookingID, fmt.Sprintf("to=%s subject=%q body=%q", msg.To, msg.Subject, msg.Body))
	return nil
}
