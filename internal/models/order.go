package models

import (
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusApproved        OrderStatus = "approved"
	OrderStatusPaymentRequired OrderStatus = "payment_required"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusRejected        OrderStatus = "rejected"
)

// orderTransitions is the single source of truth for legal status moves
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusApproved, OrderStatusRejected},
	OrderStatusApproved:        {OrderStatusPaymentRequired, OrderStatusCompleted},
	OrderStatusPaymentRequired: {OrderStatusCompleted},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidOrderStatus reports whether the given value names a known status
func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusPaymentRequired,
		OrderStatusCompleted, OrderStatusRejected:
		return true
	}
	return false
}

// ItemAddedBy tags who put a line item on the order
const (
	ItemAddedByUser        = "user"
	ItemAddedByFulfillment = "fulfillment"
)

// Order represents a purchase request in the system
type Order struct {
	ID                 string      `db:"id" json:"id"`
	UserID             string      `db:"user_id" json:"user_id"`
	Status             OrderStatus `db:"status" json:"status"`
	TotalAmount        float64     `db:"total_amount" json:"total_amount"`
	Notes              string      `db:"notes" json:"notes,omitempty"`
	ApprovedBy         *string     `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt         *time.Time  `db:"approved_at" json:"approved_at,omitempty"`
	DeliveryAssignee   *string     `db:"delivery_assignee" json:"delivery_assignee,omitempty"`
	DeliveryAssignedAt *time.Time  `db:"delivery_assigned_at" json:"delivery_assigned_at,omitempty"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at" json:"updated_at"`
	Items              []OrderItem `db:"-" json:"items"`
}

// OrderItem is one line item within an order, capturing price at order time
type OrderItem struct {
	ID        int64   `db:"id" json:"id"`
	OrderID   string  `db:"order_id" json:"order_id"`
	ItemID    string  `db:"item_id" json:"item_id"`
	Name      string  `db:"name" json:"name"`
	Quantity  int     `db:"quantity" json:"quantity"`
	Unit      string  `db:"unit" json:"unit"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
	Category  string  `db:"category" json:"category"`
	AddedBy   string  `db:"added_by" json:"added_by"`
}

// ComputeTotal sums quantity times unit price over the given line items
func ComputeTotal(items []OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}

// NewOrder creates a new pending order from the given line items.
// The sequential identifier is assigned by the store on insert.
func NewOrder(userID string, items []OrderItem, notes string) *Order {
	now := GetCurrentTime()

	return &Order{
		UserID:      userID,
		Status:      OrderStatusPending,
		TotalAmount: ComputeTotal(items),
		Notes:       notes,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
