// Package kafka publishes domain events to Kafka for downstream analysis
// pipelines.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/domain/events"
	"github.com/forensiq/collectq/pkg/common/logger"
)

// PublisherConfig contains all configuration needed to publish events.
type PublisherConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Verify DomainEventPublisher implements events.DomainEventPublisher.
var _ events.DomainEventPublisher = (*DomainEventPublisher)(nil)

// DomainEventPublisher implements the events.DomainEventPublisher interface
// using Kafka as the underlying message transport. Events are serialized as
// JSON and partitioned by their routing key so all events for one request
// land on the same partition in order.
type DomainEventPublisher struct {
	producer sarama.SyncProducer
	topic    string

	logger *logger.Logger
	tracer trace.Tracer
}

// NewDomainEventPublisher creates a publisher that sends events through the
// given producer.
func NewDomainEventPublisher(producer sarama.SyncProducer, cfg *PublisherConfig, logger *logger.Logger, tracer trace.Tracer) *DomainEventPublisher {
	return &DomainEventPublisher{
		producer: producer,
		topic:    cfg.Topic,
		logger:   logger,
		tracer:   tracer,
	}
}

// envelope is the wire format wrapping every published payload.
type envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// PublishDomainEvent serializes the event and sends it synchronously. The
// producer is configured to wait for acknowledgment from all in-sync replicas,
// so a nil return means the event is durably published.
func (pub *DomainEventPublisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent) error {
	ctx, span := pub.tracer.Start(ctx, "kafka_publisher.publish_domain_event",
		trace.WithAttributes(
			attribute.String("event_type", string(event.Type)),
			attribute.String("event_key", event.Key),
			attribute.String("topic", pub.topic),
		))
	defer span.End()

	data, err := json.Marshal(envelope{
		Type:       string(event.Type),
		OccurredAt: event.Timestamp,
		Payload:    event.Payload,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal event")
		return fmt.Errorf("marshaling event %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: pub.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := pub.producer.SendMessage(msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return fmt.Errorf("publishing event %s: %w", event.Type, err)
	}

	span.SetAttributes(
		attribute.Int64("partition", int64(partition)),
		attribute.Int64("offset", offset),
	)
	pub.logger.Debug(ctx, "published domain event",
		"event_type", event.Type, "key", event.Key, "partition", partition, "offset", offset)

	return nil
}

// Close shuts down the underlying producer.
func (pub *DomainEventPublisher) Close() error { return pub.producer.Close() }
