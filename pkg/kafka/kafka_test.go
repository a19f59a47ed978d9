package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { w.closed = true; return nil }

// memReader serves queued messages, then blocks until the context ends.
type memReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	select {
	case r.drained <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error { r.closed = true; return nil }

// ---------------------------------------------------------------------------
// Producer
// ---------------------------------------------------------------------------

func TestPublishWritesTypedMessage(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w, "grocery-events")

	if err := p.Publish(context.Background(), Event{Key: "r-1", Type: "cart", Value: map[string]int{"lines": 3}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	got := fromMessage(w.msgs[0])
	if got.Type != "cart" || string(got.Key) != "r-1" || string(got.Value) != `{"lines":3}` {
		t.Errorf("unexpected message %+v", got)
	}

	p.Close()
	if !w.closed {
		t.Error("Close did not close the writer")
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&memWriter{err: boom}, "grocery-events")
	if err := p.Publish(context.Background(), Event{Key: "k", Type: "resolve", Value: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestToMessageRejectsUnencodableValue(t *testing.T) {
	if _, err := toMessage(Event{Key: "k", Value: make(chan int)}); err == nil {
		t.Fatal("expected marshal error for channel value")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		RecipeID string `json:"recipe_id"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"recipe_id":"r-1"}`))
	if err != nil || got.RecipeID != "r-1" {
		t.Fatalf("DecodeJSON = %+v, %v", got, err)
	}
	if _, err := DecodeJSON[payload]([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

// ---------------------------------------------------------------------------
// Consumer
// ---------------------------------------------------------------------------

func TestConsumerCommitsOnlyHandledMessages(t *testing.T) {
	r := &memReader{drained: make(chan struct{}, 1)}
	for i, typ := range []string{"resolve", "poison", "cart"} {
		m, _ := toMessage(Event{Key: "k", Type: typ, Value: i})
		m.Offset = int64(i)
		r.queue = append(r.queue, m)
	}

	var seen []string
	c := newConsumer(r, "grocery-events", func(_ context.Context, msg Message) error {
		seen = append(seen, msg.Type)
		if msg.Type == "poison" {
			return errors.New("unknown payload")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	<-r.drained
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned %v", err)
	}

	if len(seen) != 3 {
		t.Fatalf("handler saw %v, want all three", seen)
	}
	if len(r.committed) != 2 || r.committed[0] != 0 || r.committed[1] != 2 {
		t.Errorf("committed offsets = %v, want [0 2]", r.committed)
	}
	if !r.closed {
		t.Error("reader not closed on shutdown")
	}
}
