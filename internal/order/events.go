package order

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// StatusPublisher pushes status events to whoever audits or reacts to them
// (the refund workflow listens for cancellations).
type StatusPublisher interface {
	PublishStatusEvent(ctx context.Context, ord Order, event StatusEvent) error
}

type statusEventMessage struct {
	OrderID     int    `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	CustomerID  int    `json:"customerId"`
	Status      Status `json:"status"`
	Timestamp   string `json:"timestamp"`
	ActorName   string `json:"actorName"`
	Note        string `json:"note,omitempty"`
}

// KafkaPublisher writes one message per transition, keyed by order number so
// a partition sees each order's history in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

func (p *KafkaPublisher) PublishStatusEvent(ctx context.Context, ord Order, event StatusEvent) error {
	value, err := json.Marshal(statusEventMessage{
		OrderID:     ord.OrderID,
		OrderNumber: ord.OrderNumber,
		CustomerID:  ord.Customer.CustomerID,
		Status:      event.Status,
		Timestamp:   event.Timestamp,
		ActorName:   event.ActorName,
		Note:        event.Note,
	})
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ord.OrderNumber),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
