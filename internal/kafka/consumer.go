package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"quarterdeck-booking/internal/logger"
)

// Handler processes one message. Returning an error triggers a bounded retry.
type Handler func(ctx context.Context, msg kafka.Message) error

// DeadLetter parks a message whose handler kept failing, together with the last error.
type DeadLetter func(ctx context.Context, msg kafka.Message, cause error) error

type Consumer struct {
	reader     *kafka.Reader
	log        *logger.Logger
	maxRetries int
	retryDelay time.Duration
	deadLetter DeadLetter
}

// NewConsumer joins groupID and reads every topic in topics.
func NewConsumer(brokers, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     time.Second,
	})
	return &Consumer{reader: reader, log: log, maxRetries: 3, retryDelay: time.Second}
}

// WithDeadLetter parks exhausted messages through dl instead of dropping them.
func (c *Consumer) WithDeadLetter(dl DeadLetter) *Consumer {
	c.deadLetter = dl
	return c
}

// Run fetches and handles messages until ctx is cancelled. A message is
// committed after it is handled, or once its retries are exhausted and it has
// been parked.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	c.log.Info("KAFKA", fmt.Sprintf("Consumer started for topics %v", c.reader.Config().GroupTopics))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error fetching message: %v", err))
			if !sleep(ctx, c.retryDelay) {
				return nil
			}
			continue
		}

		c.dispatch(ctx, msg, handle)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("KAFKA", fmt.Sprintf("Failed to commit offset %d on %s: %v", msg.Offset, msg.Topic, err))
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message, handle Handler) {
	for attempt := 1; ; attempt++ {
		err := handle(ctx, msg)
		if err == nil {
			return
		}
		if attempt > c.maxRetries {
			c.park(ctx, msg, err)
			return
		}
		c.log.LogKafka("RETRY", msg.Topic, fmt.Sprintf("Handler failed for key=%s (attempt %d): %v", msg.Key, attempt, err))
		if !sleep(ctx, c.retryDelay*time.Duration(attempt)) {
			return
		}
	}
}

func (c *Consumer) park(ctx context.Context, msg kafka.Message, cause error) {
	if c.deadLetter == nil {
		c.log.LogKafka("DROP", msg.Topic, fmt.Sprintf("Giving up on key=%s offset=%d: %v", msg.Key, msg.Offset, cause))
		return
	}
	for attempt := 1; ; attempt++ {
		err := c.deadLetter(ctx, msg, cause)
		if err == nil {
			c.log.LogKafka("PARKED", msg.Topic, fmt.Sprintf("Parked key=%s offset=%d: %v", msg.Key, msg.Offset, cause))
			return
		}
		if attempt > c.maxRetries || !sleep(ctx, c.retryDelay*time.Duration(attempt)) {
			c.log.Error("KAFKA", fmt.Sprintf("Lost key=%s offset=%d on %s, dead-letter write failed: %v", msg.Key, msg.Offset, msg.Topic, err))
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
