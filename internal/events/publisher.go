// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"mcp-dish-order/internal/models"
)

const (
	BatchTimeout = 10 * time.Millisecond
	BatchSize    = 100
)

// Publisher announces committed order changes. Delivery is best effort; the
// order is already durable when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
	Close() error
}

// NewOrderEvent stamps a fresh event for an order.
func NewOrderEvent(eventType models.OrderEventType, order *models.Order) models.OrderEvent {
	return models.OrderEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		Ingredients: append([]string{}, order.Ingredients...),
		OccurredAt:  time.Now().UTC(),
	}
}

type producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer producer
	topic  string
}

// NewKafkaPublisher writes JSON events keyed by order id. The writer is
// wrapped so the current span context travels in the message headers.
func NewKafkaPublisher(brokers []string, topic, clientID string, tp trace.TracerProvider) (*KafkaPublisher, error) {
	base := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: BatchTimeout,
		BatchSize:    BatchSize,
	}
	writer, err := otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes(
			[]attribute.KeyValue{
				semconv.MessagingDestinationNameKey.String(topic),
				attribute.String("messaging.kafka.client_id", clientID),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka writer: %w", err)
	}
	return &KafkaPublisher{writer: writer, topic: topic}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	if err := p.writer.WriteMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                      { return nil }
