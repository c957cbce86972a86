package models

import (
	"encoding/json"
	"time"
)

// Domain event types carried through the outbox
const (
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentCompleted   = "payment_completed"
	EventPaymentFailed      = "payment_failed"
	EventInventoryAdjusted  = "inventory_adjusted"
)

// DomainEvent is the envelope written into the outbox payload
type DomainEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	event := DomainEvent{
		EventType:   eventType,
		EventID:     GenerateEventID(),
		AggregateID: aggregateID,
		OccurredAt:  GetCurrentTime(),
		Data:        data,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     GetCurrentTime(),
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates an outbox message for a newly created order
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCreated, order)
}

// NewOrderStatusChangedEvent creates an outbox message for an order status change
func NewOrderStatusChangedEvent(order *Order, oldStatus OrderStatus) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderStatusChanged, map[string]interface{}{
		"order_id":   order.ID,
		"user_id":    order.UserID,
		"old_status": oldStatus,
		"new_status": order.Status,
	})
}

// NewPaymentCompletedEvent creates an outbox message for a settled transaction
func NewPaymentCompletedEvent(txn *PaymentTransaction) (*OutboxMessage, error) {
	return newOutboxMessage("payment", txn.ID, EventPaymentCompleted, txn)
}

// NewPaymentFailedEvent creates an outbox message for a declined transaction
func NewPaymentFailedEvent(txn *PaymentTransaction, reason string) (*OutboxMessage, error) {
	return newOutboxMessage("payment", txn.ID, EventPaymentFailed, map[string]interface{}{
		"transaction_id": txn.ID,
		"order_id":       txn.OrderID,
		"user_id":        txn.UserID,
		"reason":         reason,
	})
}

// NewInventoryAdjustedEvent creates an outbox message for a stock movement
func NewInventoryAdjustedEvent(item *InventoryItem, delta int, reason string) (*OutboxMessage, error) {
	return newOutboxMessage("inventory", item.ID, EventInventoryAdjusted, map[string]interface{}{
		"item_id":      item.ID,
		"delta":        delta,
		"new_quantity": item.Quantity,
		"status":       item.Status,
		"reason":       reason,
	})
}
