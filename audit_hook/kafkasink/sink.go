// Package kafkasink publishes audit events as JSON messages to a Kafka topic.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	audithook "github.com/xraph/tally/audit_hook"
)

// DefaultTopic receives events when no topic is configured.
const DefaultTopic = "tally.audit"

// Writer is the subset of *kafka.Writer the sink uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Sink is an audithook.Recorder backed by Kafka. Messages are keyed by
// resource id so the events of one record stay ordered within a partition.
type Sink struct {
	writer Writer
}

var _ audithook.Recorder = (*Sink)(nil)

// New returns a sink writing to topic on brokers.
func New(brokers []string, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return NewWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	})
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(w Writer) *Sink {
	return &Sink{writer: w}
}

// Record implements audithook.Recorder.
func (s *Sink) Record(ctx context.Context, event *audithook.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafkasink: encode %s: %w", event.Action, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ResourceID),
		Value: payload,
		Time:  event.At,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "outcome", Value: []byte(event.Outcome)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafkasink: write %s: %w", event.Action, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (s *Sink) Close() error {
	return s.writer.Close()
}
