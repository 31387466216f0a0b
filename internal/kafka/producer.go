package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-rsvp/internal/models"
)

// Producer publishes committed domain events. Each transition type maps
// to its own topic under the configured prefix, keyed by event id so
// all transitions for one event land on one partition in order.
type Producer struct {
	Writer *kafka.Writer
	prefix string
}

func NewProducer(brokers []string, topicPrefix string) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, prefix: topicPrefix}
}

// TopicFor maps a domain event type to its Kafka topic,
// e.g. rsvp.confirmed -> gatherly.rsvp.confirmed.
func (p *Producer) TopicFor(eventType string) string {
	return fmt.Sprintf("%s.%s", p.prefix, eventType)
}

// PublishDomainEvent writes one committed transition. Callers invoke it
// only after the owning transaction has committed; a rolled-back
// mutation never reaches this point.
func (p *Producer) PublishDomainEvent(ev models.DomainEvent) error {
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: p.TopicFor(ev.Type),
			Key:   []byte(ev.EventID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
