package export

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Message is one projected resource ready for publishing.
type Message struct {
	Key          string
	ResourceType string
	TenantID     uuid.UUID
	Body         []byte
}

type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
	Close() error
}

// KafkaPublisher writes each batch with a single WriteMessages call. Messages
// are keyed by "<type>/<id>" so every version of a resource lands on the
// same partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("no kafka topic configured")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}, nil
}

func (p *KafkaPublisher) Topic() string {
	return p.writer.Topic
}

func (p *KafkaPublisher) Publish(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, kafkaMessages(msgs)...); err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(msgs), p.writer.Topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessages(msgs []Message) []kafka.Message {
	out := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		out[i] = kafka.Message{
			Key:   []byte(m.Key),
			Value: m.Body,
			Headers: []kafka.Header{
				{Key: "resource_type", Value: []byte(m.ResourceType)},
				{Key: "tenant_id", Value: []byte(m.TenantID.String())},
				{Key: "content_type", Value: []byte("application/fhir+json")},
			},
		}
	}
	return out
}
