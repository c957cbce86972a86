package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/repository"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// OrderStore is the storage surface the order lifecycle manager needs
type OrderStore interface {
	Create(ctx context.Context, order *models.Order, msg *models.OutboxMessage) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, approvedBy *string, approvedAt *time.Time, msg *models.OutboxMessage) error
	AddItems(ctx context.Context, orderID string, items []models.OrderItem) error
	UpdateItemQuantity(ctx context.Context, orderID string, itemRowID int64, quantity int) error
	DeleteItem(ctx context.Context, orderID string, itemRowID int64) error
	SetDelivery(ctx context.Context, orderID string, assignee *string, assignedAt *time.Time) error
}

// InventoryReader is the read surface order creation checks availability against
type InventoryReader interface {
	GetByID(ctx context.Context, id string) (*models.InventoryItem, error)
}

// OrderLineInput is one requested line item on order creation
type OrderLineInput struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

// StatusUpdateResult carries the updated order and whether the client should
// now redirect the purchaser to the payment screen
type StatusUpdateResult struct {
	Order           *models.Order `json:"order"`
	PaymentRequired bool          `json:"payment_required"`
}

// OrderService owns the order entity and its status state machine
type OrderService struct {
	orders    OrderStore
	inventory InventoryReader
	logger    logger.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(orders OrderStore, inventory InventoryReader, logger logger.Logger) *OrderService {
	return &OrderService{
		orders:    orders,
		inventory: inventory,
		logger:    logger,
	}
}

// CreateOrder validates the requested lines against observed inventory
// availability, prices them at order time, and persists a pending order.
// Stock is not reserved here; it is committed at checkout by the caller.
func (s *OrderService) CreateOrder(ctx context.Context, actor models.Actor, lines []OrderLineInput, notes string) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, apperrors.NewValidationError("order must contain at least one item")
	}

	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("quantity for item %s must be at least 1", line.ItemID))
		}

		stock, err := s.inventory.GetByID(ctx, line.ItemID)

		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError(fmt.Sprintf("inventory item %s not found", line.ItemID))
			}
			return nil, err
		}

		if stock.Quantity < line.Quantity {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("insufficient stock for item %s: %d available", line.ItemID, stock.Quantity))
		}

		items = append(items, models.OrderItem{
			ItemID:    stock.ID,
			Name:      stock.Name,
			Quantity:  line.Quantity,
			Unit:      stock.Unit,
			UnitPrice: stock.UnitPrice,
			Category:  stock.Category,
			AddedBy:   models.ItemAddedByUser,
		})
	}

	order := models.NewOrder(actor.UserID, items, notes)

	msg, err := models.NewOrderCreatedEvent(order)

	if err != nil {
		s.logger.Error("Failed to create outbox message", "error", err)
		return nil, fmt.Errorf("failed to create outbox message: %w", err)
	}

	if err := s.orders.Create(ctx, order, msg); err != nil {
		return nil, err
	}

	s.logger.Info("Order created", "orderID", order.ID, "userID", actor.UserID, "total", order.TotalAmount)
	return order, nil
}

// GetOrder retrieves one order, enforcing ownership for unprivileged actors
func (s *OrderService) GetOrder(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	if !actor.CanManageOrders() && order.UserID != actor.UserID {
		return nil, apperrors.NewNotFoundError("order not found")
	}

	return order, nil
}

// ListOrders retrieves all orders; restricted to privileged roles
func (s *OrderService) ListOrders(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("listing all orders requires a privileged role")
	}

	return s.orders.GetAll(ctx, limit, offset)
}

// ListMyOrders retrieves the requesting user's orders
func (s *OrderService) ListMyOrders(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.Order, error) {
	return s.orders.GetByUserID(ctx, actor.UserID, limit, offset)
}

// UpdateStatus moves an order along the transition graph. The write is
// conditional on the current status so concurrent transitions cannot both
// succeed. On approval the approver and timestamp are recorded and the
// result signals that payment is now required.
func (s *OrderService) UpdateStatus(ctx context.Context, actor models.Actor, orderID string, newStatus models.OrderStatus) (*StatusUpdateResult, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("updating order status requires a privileged role")
	}

	if !models.IsValidOrderStatus(newStatus) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown order status %q", newStatus))
	}

	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	oldStatus := order.Status

	if !models.CanTransition(oldStatus, newStatus) {
		return nil, apperrors.NewInvalidTransitionError(
			fmt.Sprintf("cannot transition order from %s to %s", oldStatus, newStatus))
	}

	var approvedBy *string
	var approvedAt *time.Time

	if newStatus == models.OrderStatusApproved {
		now := models.GetCurrentTime()
		approvedBy = &actor.UserID
		approvedAt = &now
	}

	order.Status = newStatus
	msg, err := models.NewOrderStatusChangedEvent(order, oldStatus)

	if err != nil {
		s.logger.Error("Failed to create outbox message", "error", err)
		return nil, fmt.Errorf("failed to create outbox message: %w", err)
	}

	err = s.orders.UpdateStatus(ctx, orderID, oldStatus, newStatus, approvedBy, approvedAt, msg)

	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, apperrors.NewConflictError("order status changed concurrently, refresh and retry")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		"orderID", orderID,
		"oldStatus", oldStatus,
		"newStatus", newStatus,
		"actor", actor.UserID)

	return &StatusUpdateResult{
		Order:           updated,
		PaymentRequired: newStatus == models.OrderStatusApproved || newStatus == models.OrderStatusPaymentRequired,
	}, nil
}

// AddItems appends fulfillment-added line items to an order that is not yet
// completed. The total is recomputed from current items.
func (s *OrderService) AddItems(ctx context.Context, actor models.Actor, orderID string, lines []OrderLineInput) (*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("mutating order items requires a privileged role")
	}

	order, err := s.mutableOrder(ctx, orderID)

	if err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, apperrors.NewValidationError("no items to add")
	}

	items := make([]models.OrderItem, 0, len(lines))

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("quantity for item %s must be at least 1", line.ItemID))
		}

		stock, err := s.inventory.GetByID(ctx, line.ItemID)

		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFoundError(fmt.Sprintf("inventory item %s not found", line.ItemID))
			}
			return nil, err
		}

		items = append(items, models.OrderItem{
			ItemID:    stock.ID,
			Name:      stock.Name,
			Quantity:  line.Quantity,
			Unit:      stock.Unit,
			UnitPrice: stock.UnitPrice,
			Category:  stock.Category,
			AddedBy:   models.ItemAddedByFulfillment,
		})
	}

	if err := s.orders.AddItems(ctx, order.ID, items); err != nil {
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

// UpdateItemQuantity changes one line item's quantity and recomputes the total
func (s *OrderService) UpdateItemQuantity(ctx context.Context, actor models.Actor, orderID string, itemRowID int64, quantity int) (*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("mutating order items requires a privileged role")
	}

	if quantity < 1 {
		return nil, apperrors.NewValidationError("quantity must be at least 1")
	}

	if _, err := s.mutableOrder(ctx, orderID); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateItemQuantity(ctx, orderID, itemRowID, quantity); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order item not found")
		}
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

// DeleteItem removes one line item and recomputes the total
func (s *OrderService) DeleteItem(ctx context.Context, actor models.Actor, orderID string, itemRowID int64) (*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("mutating order items requires a privileged role")
	}

	if _, err := s.mutableOrder(ctx, orderID); err != nil {
		return nil, err
	}

	if err := s.orders.DeleteItem(ctx, orderID, itemRowID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order item not found")
		}
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

// AssignDelivery attaches a delivery-handler tag and timestamp; status is untouched
func (s *OrderService) AssignDelivery(ctx context.Context, actor models.Actor, orderID, assignee string) (*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("assigning delivery requires a privileged role")
	}

	if assignee == "" {
		return nil, apperrors.NewValidationError("delivery assignee is required")
	}

	now := models.GetCurrentTime()

	if err := s.orders.SetDelivery(ctx, orderID, &assignee, &now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

// UnassignDelivery clears the delivery-handler tag and timestamp
func (s *OrderService) UnassignDelivery(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("assigning delivery requires a privileged role")
	}

	if err := s.orders.SetDelivery(ctx, orderID, nil, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	return s.orders.GetByID(ctx, orderID)
}

// mutableOrder fetches an order and rejects line item mutation once completed
func (s *OrderService) mutableOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	if order.Status == models.OrderStatusCompleted {
		return nil, apperrors.NewConflictError("completed orders cannot be modified")
	}

	return order, nil
}
