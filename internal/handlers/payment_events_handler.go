package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// PaymentEventsHandler consumes settlement outcomes from Kafka
type PaymentEventsHandler struct {
	logger logger.Logger
}

// NewPaymentEventsHandler creates a new PaymentEventsHandler
func NewPaymentEventsHandler(logger logger.Logger) *PaymentEventsHandler {
	return &PaymentEventsHandler{
		logger: logger,
	}
}

// HandleMessage handles incoming payment events from Kafka messages
func (h *PaymentEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.DomainEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	h.logger.Info("Handling payment event",
		"eventType", event.EventType,
		"eventId", event.EventID,
		"aggregateId", event.AggregateID,
		"occurredAt", event.OccurredAt,
	)

	switch event.EventType {
	case models.EventPaymentCompleted:
		return h.handlePaymentCompleted(event)
	case models.EventPaymentFailed:
		return h.handlePaymentFailed(event)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

func (h *PaymentEventsHandler) handlePaymentCompleted(event models.DomainEvent) error {
	h.logger.Info("Processing payment completed event",
		"transactionID", event.AggregateID,
		"eventID", event.EventID,
	)

	// Hook for receipt emails and distributor notifications

	return nil
}

func (h *PaymentEventsHandler) handlePaymentFailed(event models.DomainEvent) error {
	data, ok := event.Data.(map[string]interface{})

	if !ok {
		h.logger.Error("Invalid event data format", "eventID", event.EventID)
		return fmt.Errorf("invalid event data format")
	}

	orderID, _ := data["order_id"].(string)
	reason, _ := data["reason"].(string)

	h.logger.Warn("Payment failed",
		"transactionID", event.AggregateID,
		"orderID", orderID,
		"reason", reason)

	// Hook for customer notification so they can retry with another card

	return nil
}
