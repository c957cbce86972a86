package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/repository"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// --- Setup ---

var (
	buyer    = models.Actor{UserID: "u-buyer", Role: models.RoleUser}
	stranger = models.Actor{UserID: "u-other", Role: models.RoleUser}
	approver = models.Actor{UserID: "u-finance", Role: models.RoleFinance}
)

func setupOrderTest(t *testing.T) (*OrderService, *mockOrderStore, *mockInventoryStore) {
	t.Helper()
	orders := newMockOrderStore()
	inventory := newMockInventoryStore()
	svc := NewOrderService(orders, inventory, logger.NewLogger("error"))
	return svc, orders, inventory
}

func seedStock(inv *mockInventoryStore, id string, qty int, price float64) {
	inv.items[id] = &models.InventoryItem{
		ID:        id,
		Name:      "Item " + id,
		Category:  models.CategoryGrain,
		Quantity:  qty,
		Unit:      "kg",
		UnitPrice: price,
		Status:    models.DeriveInventoryStatus(qty, 0),
	}
}

// --- Tests ---

func TestCreateOrder_Success(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 100, 2.50)
	seedStock(inv, "INV002", 50, 8.00)

	order, err := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 4},
		{ItemID: "INV002", Quantity: 1},
	}, "deliver friday")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, buyer.UserID, order.UserID)
	assert.InDelta(t, 18.00, order.TotalAmount, 0.001)
	require.Len(t, order.Items, 2)
	assert.Equal(t, models.ItemAddedByUser, order.Items[0].AddedBy)
	assert.InDelta(t, 2.50, order.Items[0].UnitPrice, 0.001)

	require.Len(t, orders.outbox, 1)
	assert.Equal(t, models.EventOrderCreated, orders.outbox[0].EventType)
}

func TestCreateOrder_EmptyAndInvalidQuantity(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 100, 2.50)

	_, err := svc.CreateOrder(context.Background(), buyer, nil, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 0},
	}, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 3, 2.50)

	_, err := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 4},
	}, "")

	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, orders.orders)
}

func TestCreateOrder_UnknownItem(t *testing.T) {
	svc, _, _ := setupOrderTest(t)

	_, err := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV404", Quantity: 1},
	}, "")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetOrder_OwnershipHidesOthers(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 1.00)

	order, err := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")
	require.NoError(t, err)

	// Owner sees it
	got, err := svc.GetOrder(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	// Another plain user gets not found, not forbidden
	_, err = svc.GetOrder(context.Background(), stranger, order.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Privileged roles see everything
	_, err = svc.GetOrder(context.Background(), approver, order.ID)
	assert.NoError(t, err)
}

func TestListOrders_RequiresPrivilegedRole(t *testing.T) {
	svc, _, _ := setupOrderTest(t)

	_, err := svc.ListOrders(context.Background(), buyer, 10, 0)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.ListOrders(context.Background(), approver, 10, 0)
	assert.NoError(t, err)
}

func TestUpdateStatus_ApprovalRecordsApproverAndFlagsPayment(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, err := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 2},
	}, "")
	require.NoError(t, err)

	result, err := svc.UpdateStatus(context.Background(), approver, order.ID, models.OrderStatusApproved)

	require.NoError(t, err)
	assert.True(t, result.PaymentRequired)
	assert.Equal(t, models.OrderStatusApproved, result.Order.Status)
	require.NotNil(t, result.Order.ApprovedBy)
	assert.Equal(t, approver.UserID, *result.Order.ApprovedBy)
	assert.NotNil(t, result.Order.ApprovedAt)

	// Creation event plus status change event
	require.Len(t, orders.outbox, 2)
	assert.Equal(t, models.EventOrderStatusChanged, orders.outbox[1].EventType)
}

func TestUpdateStatus_RejectionDoesNotFlagPayment(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")

	result, err := svc.UpdateStatus(context.Background(), approver, order.ID, models.OrderStatusRejected)

	require.NoError(t, err)
	assert.False(t, result.PaymentRequired)
	assert.Nil(t, result.Order.ApprovedBy)
}

func TestUpdateStatus_IllegalTransitionHasNoSideEffects(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")
	eventsBefore := len(orders.outbox)

	_, err := svc.UpdateStatus(context.Background(), approver, order.ID, models.OrderStatusCompleted)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Zero(t, orders.updateStatusCalls)
	assert.Len(t, orders.outbox, eventsBefore)

	got, _ := svc.GetOrder(context.Background(), approver, order.ID)
	assert.Equal(t, models.OrderStatusPending, got.Status)
}

func TestUpdateStatus_UnknownStatusRejected(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")

	_, err := svc.UpdateStatus(context.Background(), approver, order.ID, models.OrderStatus("shipped"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdateStatus_Forbidden(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")

	_, err := svc.UpdateStatus(context.Background(), buyer, order.ID, models.OrderStatusApproved)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUpdateStatus_ConcurrentConflict(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")
	orders.failNextUpdateWith = repository.ErrStatusConflict

	_, err := svc.UpdateStatus(context.Background(), approver, order.ID, models.OrderStatusApproved)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAddItems_RecomputesTotal(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)
	seedStock(inv, "INV002", 10, 3.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 2},
	}, "")

	updated, err := svc.AddItems(context.Background(), approver, order.ID, []OrderLineInput{
		{ItemID: "INV002", Quantity: 3},
	})

	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	assert.Equal(t, models.ItemAddedByFulfillment, updated.Items[1].AddedBy)
	assert.InDelta(t, 19.00, updated.TotalAmount, 0.001)
}

func TestAddItems_CompletedOrderRejected(t *testing.T) {
	svc, orders, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")
	orders.orders[order.ID].Status = models.OrderStatusCompleted

	_, err := svc.AddItems(context.Background(), approver, order.ID, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUpdateItemQuantity_RecomputesTotal(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 2},
	}, "")
	rowID := order.Items[0].ID

	updated, err := svc.UpdateItemQuantity(context.Background(), approver, order.ID, rowID, 5)

	require.NoError(t, err)
	assert.InDelta(t, 25.00, updated.TotalAmount, 0.001)

	_, err = svc.UpdateItemQuantity(context.Background(), approver, order.ID, rowID, 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDeleteItem_RecomputesTotal(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)
	seedStock(inv, "INV002", 10, 3.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 2},
		{ItemID: "INV002", Quantity: 1},
	}, "")

	updated, err := svc.DeleteItem(context.Background(), approver, order.ID, order.Items[1].ID)

	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.InDelta(t, 10.00, updated.TotalAmount, 0.001)
}

func TestAssignDelivery(t *testing.T) {
	svc, _, inv := setupOrderTest(t)
	seedStock(inv, "INV001", 10, 5.00)

	order, _ := svc.CreateOrder(context.Background(), buyer, []OrderLineInput{
		{ItemID: "INV001", Quantity: 1},
	}, "")

	_, err := svc.AssignDelivery(context.Background(), approver, order.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	updated, err := svc.AssignDelivery(context.Background(), approver, order.ID, "rider-7")
	require.NoError(t, err)
	require.NotNil(t, updated.DeliveryAssignee)
	assert.Equal(t, "rider-7", *updated.DeliveryAssignee)
	assert.NotNil(t, updated.DeliveryAssignedAt)

	cleared, err := svc.UnassignDelivery(context.Background(), approver, order.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.DeliveryAssignee)
	assert.Nil(t, cleared.DeliveryAssignedAt)
}

// --- Mocks ---

type mockOrderStore struct {
	orders             map[string]*models.Order
	outbox             []*models.OutboxMessage
	seq                int64
	itemSeq            int64
	updateStatusCalls  int
	failNextUpdateWith error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		orders: make(map[string]*models.Order),
	}
}

func (m *mockOrderStore) Create(ctx context.Context, order *models.Order, msg *models.OutboxMessage) error {
	m.seq++
	order.ID = models.FormatSequentialID(models.PrefixOrder, m.seq)

	for i := range order.Items {
		m.itemSeq++
		order.Items[i].ID = m.itemSeq
		order.Items[i].OrderID = order.ID
	}

	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &stored
	m.outbox = append(m.outbox, msg)
	return nil
}

func (m *mockOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	val := *order
	val.Items = append([]models.OrderItem(nil), order.Items...)
	return &val, nil
}

func (m *mockOrderStore) GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	out := make([]*models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		val := *o
		out = append(out, &val)
	}
	return out, nil
}

func (m *mockOrderStore) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			val := *o
			out = append(out, &val)
		}
	}
	return out, nil
}

func (m *mockOrderStore) UpdateStatus(ctx context.Context, orderID string, from, to models.OrderStatus, approvedBy *string, approvedAt *time.Time, msg *models.OutboxMessage) error {
	m.updateStatusCalls++

	if m.failNextUpdateWith != nil {
		err := m.failNextUpdateWith
		m.failNextUpdateWith = nil
		return err
	}

	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	if order.Status != from {
		return repository.ErrStatusConflict
	}

	order.Status = to
	if approvedBy != nil {
		order.ApprovedBy = approvedBy
		order.ApprovedAt = approvedAt
	}

	m.outbox = append(m.outbox, msg)
	return nil
}

func (m *mockOrderStore) AddItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	for _, it := range items {
		m.itemSeq++
		it.ID = m.itemSeq
		it.OrderID = orderID
		order.Items = append(order.Items, it)
	}

	order.TotalAmount = models.ComputeTotal(order.Items)
	return nil
}

func (m *mockOrderStore) UpdateItemQuantity(ctx context.Context, orderID string, itemRowID int64, quantity int) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	for i := range order.Items {
		if order.Items[i].ID == itemRowID {
			order.Items[i].Quantity = quantity
			order.TotalAmount = models.ComputeTotal(order.Items)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockOrderStore) DeleteItem(ctx context.Context, orderID string, itemRowID int64) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	for i := range order.Items {
		if order.Items[i].ID == itemRowID {
			order.Items = append(order.Items[:i], order.Items[i+1:]...)
			order.TotalAmount = models.ComputeTotal(order.Items)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *mockOrderStore) SetDelivery(ctx context.Context, orderID string, assignee *string, assignedAt *time.Time) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}

	order.DeliveryAssignee = assignee
	order.DeliveryAssignedAt = assignedAt
	return nil
}

type mockInventoryStore struct {
	items map[string]*models.InventoryItem
}

func newMockInventoryStore() *mockInventoryStore {
	return &mockInventoryStore{
		items: make(map[string]*models.InventoryItem),
	}
}

func (m *mockInventoryStore) GetByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	val := *item
	return &val, nil
}
