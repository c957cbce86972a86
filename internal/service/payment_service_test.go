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

const testSettlementDelay = 5 * time.Second

func setupPaymentTest(t *testing.T) (*PaymentService, *mockTransactionStore, *mockOrderStore, *mockMethodStore) {
	t.Helper()
	transactions := newMockTransactionStore()
	orders := newMockOrderStore()
	methods := newMockMethodStore()
	svc := NewPaymentService(transactions, orders, methods, testSettlementDelay, logger.NewLogger("error"))
	return svc, transactions, orders, methods
}

func seedApprovedOrder(orders *mockOrderStore, userID string, total float64) *models.Order {
	orders.seq++
	id := models.FormatSequentialID(models.PrefixOrder, orders.seq)
	order := &models.Order{
		ID:          id,
		UserID:      userID,
		Status:      models.OrderStatusApproved,
		TotalAmount: total,
	}
	orders.orders[id] = order
	return order
}

func seedMethod(methods *mockMethodStore, userID string, active bool) *models.PaymentMethod {
	method := models.NewPaymentMethod(userID, models.CardInput{
		CardNumber:  "4111111111111234",
		HolderName:  "Test Holder",
		ExpiryMonth: "12",
		ExpiryYear:  "2030",
		CVV:         "123",
	})
	method.IsActive = active
	methods.methods[method.ID] = method
	return method
}

// --- Tests ---

func TestProcessPayment_CreatesProcessingTransaction(t *testing.T) {
	svc, transactions, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 42.50)
	method := seedMethod(methods, buyer.UserID, true)

	before := time.Now().UTC()
	txn, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusProcessing, txn.Status)
	assert.Equal(t, order.ID, txn.OrderID)
	assert.Equal(t, buyer.UserID, txn.UserID)
	assert.InDelta(t, 42.50, txn.Amount, 0.001)

	// Settlement is deferred, not immediate
	assert.True(t, txn.SettleAfter.After(before.Add(testSettlementDelay-time.Second)))
	assert.Nil(t, txn.ProcessedAt)

	require.Len(t, transactions.txns, 1)

	// The order is untouched until settlement resolves
	stored, _ := orders.GetByID(context.Background(), order.ID)
	assert.Equal(t, models.OrderStatusApproved, stored.Status)
}

func TestProcessPayment_PaymentRequiredStatusAccepted(t *testing.T) {
	svc, _, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)
	order.Status = models.OrderStatusPaymentRequired
	method := seedMethod(methods, buyer.UserID, true)

	_, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	assert.NoError(t, err)
}

func TestProcessPayment_OrderNotAwaitingPayment(t *testing.T) {
	svc, transactions, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)
	order.Status = models.OrderStatusPending
	method := seedMethod(methods, buyer.UserID, true)

	_, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)

	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Empty(t, transactions.txns)
}

func TestProcessPayment_DuplicateRejected(t *testing.T) {
	svc, transactions, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)
	method := seedMethod(methods, buyer.UserID, true)

	_, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	require.NoError(t, err)

	_, err = svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)
	assert.Len(t, transactions.txns, 1)
}

func TestProcessPayment_RetryAllowedAfterFailure(t *testing.T) {
	svc, transactions, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)
	method := seedMethod(methods, buyer.UserID, true)

	first, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	require.NoError(t, err)

	// A failed transaction no longer blocks a new attempt
	transactions.txns[first.ID].Status = models.TransactionStatusFailed

	second, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestProcessPayment_ForeignOrderHidden(t *testing.T) {
	svc, _, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, stranger.UserID, 10)
	method := seedMethod(methods, buyer.UserID, true)

	_, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProcessPayment_MethodChecks(t *testing.T) {
	svc, _, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)

	// Unknown method
	_, err := svc.ProcessPayment(context.Background(), buyer, order.ID, "pm-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Someone else's method
	foreign := seedMethod(methods, stranger.UserID, true)
	_, err = svc.ProcessPayment(context.Background(), buyer, order.ID, foreign.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Deactivated method
	inactive := seedMethod(methods, buyer.UserID, false)
	_, err = svc.ProcessPayment(context.Background(), buyer, order.ID, inactive.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetTransaction_Ownership(t *testing.T) {
	svc, _, orders, methods := setupPaymentTest(t)
	order := seedApprovedOrder(orders, buyer.UserID, 10)
	method := seedMethod(methods, buyer.UserID, true)

	txn, err := svc.ProcessPayment(context.Background(), buyer, order.ID, method.ID)
	require.NoError(t, err)

	_, err = svc.GetTransaction(context.Background(), buyer, txn.ID)
	assert.NoError(t, err)

	_, err = svc.GetTransaction(context.Background(), stranger, txn.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = svc.GetTransaction(context.Background(), approver, txn.ID)
	assert.NoError(t, err)
}

func TestListTransactions_ScopedByRole(t *testing.T) {
	svc, _, orders, methods := setupPaymentTest(t)

	orderA := seedApprovedOrder(orders, buyer.UserID, 10)
	methodA := seedMethod(methods, buyer.UserID, true)
	_, err := svc.ProcessPayment(context.Background(), buyer, orderA.ID, methodA.ID)
	require.NoError(t, err)

	orderB := seedApprovedOrder(orders, stranger.UserID, 20)
	methodB := seedMethod(methods, stranger.UserID, true)
	_, err = svc.ProcessPayment(context.Background(), stranger, orderB.ID, methodB.ID)
	require.NoError(t, err)

	mine, err := svc.ListTransactions(context.Background(), buyer, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := svc.ListTransactions(context.Background(), approver, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// --- Mocks ---

type mockTransactionStore struct {
	txns map[string]*models.PaymentTransaction
	seq  int64
}

func newMockTransactionStore() *mockTransactionStore {
	return &mockTransactionStore{
		txns: make(map[string]*models.PaymentTransaction),
	}
}

func (m *mockTransactionStore) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	for _, existing := range m.txns {
		if existing.OrderID == txn.OrderID && existing.Status != models.TransactionStatusFailed {
			return repository.ErrDuplicate
		}
	}

	m.seq++
	txn.ID = models.FormatSequentialID(models.PrefixPayment, m.seq)
	val := *txn
	m.txns[txn.ID] = &val
	return nil
}

func (m *mockTransactionStore) GetByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	txn, ok := m.txns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	val := *txn
	return &val, nil
}

func (m *mockTransactionStore) GetAll(ctx context.Context, limit, offset int) ([]*models.PaymentTransaction, error) {
	out := make([]*models.PaymentTransaction, 0, len(m.txns))
	for _, txn := range m.txns {
		val := *txn
		out = append(out, &val)
	}
	return out, nil
}

func (m *mockTransactionStore) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentTransaction, error) {
	var out []*models.PaymentTransaction
	for _, txn := range m.txns {
		if txn.UserID == userID {
			val := *txn
			out = append(out, &val)
		}
	}
	return out, nil
}

func (m *mockTransactionStore) FindLiveByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	for _, txn := range m.txns {
		if txn.OrderID == orderID && txn.Status != models.TransactionStatusFailed {
			val := *txn
			return &val, nil
		}
	}
	return nil, repository.ErrNotFound
}

type mockMethodStore struct {
	methods map[string]*models.PaymentMethod
}

func newMockMethodStore() *mockMethodStore {
	return &mockMethodStore{
		methods: make(map[string]*models.PaymentMethod),
	}
}

func (m *mockMethodStore) GetByID(ctx context.Context, id string) (*models.PaymentMethod, error) {
	method, ok := m.methods[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	val := *method
	return &val, nil
}
