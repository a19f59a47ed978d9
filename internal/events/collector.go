package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/kafka"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers events in a channel and publishes them from a single
// background goroutine, so request handlers never wait on Kafka.
type Collector struct {
	producer Publisher
	eventCh  chan kafka.Event
	logger   *slog.Logger
	done     chan struct{}
}

// NewCollector creates a Collector with room for bufferSize pending events.
func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		producer: producer,
		eventCh:  make(chan kafka.Event, bufferSize),
		logger:   slog.Default().With("component", "events-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. It drains what is buffered once ctx ends
// or Close is called.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("events collector started", "buffer_size", cap(c.eventCh))
}

// TrackResolve implements Tracker.
func (c *Collector) TrackResolve(e ResolveEvent) {
	c.track(kafka.Event{Key: e.RecipeID, Type: string(EventResolve), Value: e})
}

// TrackCart implements Tracker.
func (c *Collector) TrackCart(e CartEvent) {
	c.track(kafka.Event{Key: e.RecipeID, Type: string(EventCart), Value: e})
}

func (c *Collector) track(event kafka.Event) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops accepting events and waits for the loop to flush. Tracking
// after Close panics.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event kafka.Event) {
	if err := c.producer.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish event", "type", event.Type, "error", err)
	}
}

func (c *Collector) drainRemaining() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(ctx, event)
		default:
			return
		}
	}
}
