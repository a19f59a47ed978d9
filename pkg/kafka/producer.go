package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/segmentio/kafka-go"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes events synchronously, hashed by key.
type Producer struct {
	w      writer
	topic  string
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}, topic)
}

func newProducer(w writer, topic string) *Producer {
	return &Producer{
		w:      w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func (p *Producer) Publish(ctx context.Context, e Event) error {
	m, err := toMessage(e)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, m); err != nil {
		return fmt.Errorf("publishing %s event to %s: %w", e.Type, p.topic, err)
	}
	p.logger.Debug("event published", "key", e.Key, "type", e.Type, "bytes", len(m.Value))
	return nil
}

// Close flushes buffered writes.
func (p *Producer) Close() error {
	return p.w.Close()
}
