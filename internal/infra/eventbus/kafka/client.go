package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/pkg/common/logger"
)

// NewProducerConfig returns the sarama configuration used for publishing.
// Acks from all in-sync replicas are required so completion events survive a
// broker failure.
func NewProducerConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	config.ClientID = clientID

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	// Version should be consistent across all components.
	config.Version = sarama.V3_6_0_0

	return config
}

// ConnectPublisher establishes a Kafka producer connection with exponential
// backoff. It retries failed connection attempts for up to 5 minutes, starting
// with 5 second intervals, to ride out broker unavailability during startup.
func ConnectPublisher(cfg *PublisherConfig, log *logger.Logger, tracer trace.Tracer) (*DomainEventPublisher, error) {
	var producer sarama.SyncProducer

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 5 * time.Minute
	expBackoff.InitialInterval = 5 * time.Second

	operation := func() error {
		var err error
		producer, err = sarama.NewSyncProducer(cfg.Brokers, NewProducerConfig(cfg.ClientID))
		if err != nil {
			return fmt.Errorf("creating producer: %w", err)
		}
		return nil
	}

	if err := backoff.Retry(operation, expBackoff); err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka after retries: %w", err)
	}

	return NewDomainEventPublisher(producer, cfg, log, tracer), nil
}
