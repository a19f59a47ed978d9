// Package kafka wraps segmentio/kafka-go for the grocery-events topic.
// Events go out as JSON with their type in a header; the consumer hands
// each message to a MessageHandler and commits only what it handled.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const typeHeader = "event_type"

// Event is what producers publish. Key picks the partition.
type Event struct {
	Key   string
	Type  string
	Value any
}

// Message is what consumers receive.
type Message struct {
	Key   []byte
	Type  string
	Value []byte
}

type MessageHandler func(ctx context.Context, msg Message) error

func toMessage(e Event) (kafka.Message, error) {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %s event: %w", e.Type, err)
	}
	m := kafka.Message{Key: []byte(e.Key), Value: value, Time: time.Now().UTC()}
	if e.Type != "" {
		m.Headers = append(m.Headers, kafka.Header{Key: typeHeader, Value: []byte(e.Type)})
	}
	return m, nil
}

func fromMessage(m kafka.Message) Message {
	out := Message{Key: m.Key, Value: m.Value}
	for _, h := range m.Headers {
		if h.Key == typeHeader {
			out.Type = string(h.Value)
			break
		}
	}
	return out
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var v T
	if err := json.Unmarshal(value, &v); err != nil {
		return v, fmt.Errorf("decoding kafka message: %w", err)
	}
	return v, nil
}
