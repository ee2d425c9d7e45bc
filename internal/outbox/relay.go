package outbox

import (
	"context"
	"fmt"
	"time"

	"quarterdeck-booking/internal/config"
	"quarterdeck-booking/internal/logger"
	"quarterdeck-booking/internal/models"
)

// Store is the outbox table seen by the relay.
type Store interface {
	// Claim leases up to limit due events until now+lease so concurrent relays skip them.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.OutboxEvent, error)
	// SaveDelivery persists status, attempts, next_attempt_at, last_error and delivered_at.
	SaveDelivery(ctx context.Context, ev *models.OutboxEvent) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

const maxBackoff = time.Hour

// Relay moves committed outbox rows to the message broker. Delivery is at least
// once; consumers dedup on the event id.
type Relay struct {
	Store       Store
	Publisher   Publisher
	Logger      *logger.Logger
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	Lease       time.Duration
	Now         func() time.Time
}

func NewRelay(store Store, pub Publisher, cfg config.OutboxConfig, log *logger.Logger) *Relay {
	return &Relay{
		Store:       store,
		Publisher:   pub,
		Logger:      log,
		Interval:    cfg.PollInterval,
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.BaseBackoff,
		Lease:       30 * time.Second,
		Now:         time.Now,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another flush.
func (r *Relay) Run(ctx context.Context) {
	r.Logger.Info("OUTBOX", fmt.Sprintf("Relay started (interval=%s batch=%d)", r.Interval, r.BatchSize))
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		n, err := r.Flush(ctx)
		if err != nil && ctx.Err() == nil {
			r.Logger.Error("OUTBOX", fmt.Sprintf("Flush failed: %v", err))
		}
		if err == nil && n >= r.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			r.Logger.Info("OUTBOX", "Relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// Flush claims one batch and tries to publish each event. It returns the number
// of events claimed.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	now := r.Now().UTC()
	events, err := r.Store.Claim(ctx, now, r.Lease, r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	for i := range events {
		ev := &events[i]
		r.deliver(ctx, ev)
		if err := r.Store.SaveDelivery(ctx, ev); err != nil {
			return i + 1, fmt.Errorf("save delivery of %s: %w", ev.ID, err)
		}
	}
	return len(events), nil
}

func (r *Relay) deliver(ctx context.Context, ev *models.OutboxEvent) {
	ev.Attempts++
	err := r.Publisher.Publish(ctx, ev.Topic, ev.Key, ev.Payload)
	now := r.Now().UTC()

	if err == nil {
		ev.Status = models.OutboxDelivered
		ev.DeliveredAt = now
		ev.LastError = ""
		r.Logger.LogOutbox("DELIVERED", ev.ID, fmt.Sprintf("topic=%s key=%s attempts=%d", ev.Topic, ev.Key, ev.Attempts))
		return
	}

	ev.LastError = err.Error()
	if ev.Attempts >= r.MaxAttempts {
		ev.Status = models.OutboxDead
		r.Logger.Error("OUTBOX", fmt.Sprintf("Event %s dead-lettered after %d attempts: %v", ev.ID, ev.Attempts, err))
		return
	}
	delay := Backoff(r.BaseBackoff, ev.Attempts)
	ev.NextAttemptAt = now.Add(delay)
	r.Logger.LogOutbox("RETRY", ev.ID, fmt.Sprintf("attempt %d failed, next in %s: %v", ev.Attempts, delay, err))
}

// Backoff is base doubled for every attempt after the first, capped at an hour.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
