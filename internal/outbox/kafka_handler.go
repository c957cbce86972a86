package outbox

import (
	"context"
	"fmt"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/kafka"
	"github.com/farmgate/agromarket-api/pkg/logger"
	"github.com/farmgate/agromarket-api/pkg/retry"
)

// KafkaHandler publishes outbox messages to Kafka. Broker hiccups are
// retried in-process with backoff before the message falls back to the
// outbox retry cycle.
type KafkaHandler struct {
	producer *kafka.Producer
	topic    string
	logger   logger.Logger
}

// NewKafkaHandler creates a new KafkaHandler
func NewKafkaHandler(producer *kafka.Producer, topic string, logger logger.Logger) *KafkaHandler {
	return &KafkaHandler{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// HandleMessage publishes an outbox message to Kafka, keyed by aggregate ID
// so events for one order or transaction stay ordered within a partition
func (h *KafkaHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	key := message.AggregateID

	h.logger.Debug("Publishing message to Kafka",
		"topic", h.topic,
		"messageID", message.ID,
		"aggregateID", message.AggregateID,
		"eventType", message.EventType)

	err := retry.Retry(ctx, func() error {
		return h.producer.SendMessage(h.topic, key, message.Payload)
	}, &retry.RetryConfig{
		MaxAttempts:     3,
		BackoffStrategy: retry.NewDefaultExponentialBackoff(),
		Logger:          h.logger,
	})

	if err != nil {
		h.logger.Error("Failed to publish message to Kafka",
			"error", err,
			"messageID", message.ID,
			"aggregateID", message.AggregateID)
		return fmt.Errorf("failed to publish message to Kafka: %w", err)
	}

	return nil
}
