package telemetry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type KafkaOptions struct {
	Brokers []string
	Topic   string
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one record per message, keyed by node id.
type KafkaPublisher struct {
	w MessageWriter
}

func NewKafka(opts KafkaOptions) *KafkaPublisher {
	return NewKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(opts.Brokers...),
		Topic:        opts.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	})
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("telemetry: marshal: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.NodeID),
		Value: payload,
		Time:  m.Time,
	}); err != nil {
		return fmt.Errorf("telemetry: kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
