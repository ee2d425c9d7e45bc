package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer writes to any topic; each message names its own. Keys are hashed so
// every event of one booking lands on the same partition.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{Writer: writer}
}

// Publish blocks until the broker acknowledges the message or ctx ends.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
}

// DeadLetterTo returns a DeadLetter that republishes failed messages to their
// topic plus suffix.
func (p *Producer) DeadLetterTo(suffix string) DeadLetter {
	return func(ctx context.Context, msg kafka.Message, cause error) error {
		return p.Writer.WriteMessages(ctx, deadLetterMessage(msg, suffix, cause))
	}
}

func deadLetterMessage(msg kafka.Message, suffix string, cause error) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+3)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "dead-letter-error", Value: []byte(cause.Error())},
		kafka.Header{Key: "dead-letter-topic", Value: []byte(msg.Topic)},
		kafka.Header{Key: "dead-letter-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
	)
	return kafka.Message{
		Topic:   msg.Topic + suffix,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
