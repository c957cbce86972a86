package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_Graph(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusApproved,
		OrderStatusPaymentRequired,
		OrderStatusCompleted,
		OrderStatusRejected,
	}

	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending: {
			OrderStatusApproved: true,
			OrderStatusRejected: true,
		},
		OrderStatusApproved: {
			OrderStatusPaymentRequired: true,
			OrderStatusCompleted:       true,
		},
		OrderStatusPaymentRequired: {
			OrderStatusCompleted: true,
		},
	}

	// Every pair of statuses is either explicitly allowed or rejected
	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			assert.Equal(t, want, CanTransition(from, to), "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransition_TerminalStatuses(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusApproved,
		OrderStatusPaymentRequired,
		OrderStatusCompleted,
		OrderStatusRejected,
	}

	for _, to := range all {
		assert.False(t, CanTransition(OrderStatusCompleted, to))
		assert.False(t, CanTransition(OrderStatusRejected, to))
	}
}

func TestIsValidOrderStatus(t *testing.T) {
	assert.True(t, IsValidOrderStatus(OrderStatusPending))
	assert.True(t, IsValidOrderStatus(OrderStatusRejected))
	assert.False(t, IsValidOrderStatus(OrderStatus("shipped")))
	assert.False(t, IsValidOrderStatus(OrderStatus("")))
}

func TestComputeTotal(t *testing.T) {
	items := []OrderItem{
		{Quantity: 2, UnitPrice: 10.50},
		{Quantity: 3, UnitPrice: 4.00},
	}

	assert.InDelta(t, 33.00, ComputeTotal(items), 0.001)
	assert.Zero(t, ComputeTotal(nil))
}

func TestNewOrder(t *testing.T) {
	items := []OrderItem{{ItemID: "INV001", Quantity: 5, UnitPrice: 2.00}}

	order := NewOrder("u-1", items, "rush delivery")

	require.NotNil(t, order)
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.Equal(t, "u-1", order.UserID)
	assert.InDelta(t, 10.00, order.TotalAmount, 0.001)
	assert.Len(t, order.Items, 1)
	assert.Nil(t, order.ApprovedBy)
}
