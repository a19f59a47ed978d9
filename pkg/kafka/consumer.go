package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/resilience"
	"github.com/segmentio/kafka-go"
)

// fetchBackoff is how long the loop waits after a broker error.
const fetchBackoff = time.Second

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic as part of a consumer group. A message the
// handler rejects is logged and left uncommitted; the next commit on the
// partition moves past it.
type Consumer struct {
	r       reader
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	}), topic, handler)
}

func newConsumer(r reader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		r:       r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Start blocks until ctx is cancelled, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	defer c.r.Close()
	c.logger.Info("consumer started")
	for {
		m, err := c.r.FetchMessage(ctx)
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped")
			return nil
		}
		if err != nil {
			c.logger.Error("fetch failed", "error", err)
			if resilience.Sleep(ctx, fetchBackoff) != nil {
				return nil
			}
			continue
		}
		c.dispatch(ctx, m)
	}
}

func (c *Consumer) dispatch(ctx context.Context, m kafka.Message) {
	msg := fromMessage(m)
	log := c.logger.With("partition", m.Partition, "offset", m.Offset, "type", msg.Type)
	if err := c.handler(ctx, msg); err != nil {
		log.Error("handler rejected message", "error", err)
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Error("commit failed", "error", err)
	}
}
