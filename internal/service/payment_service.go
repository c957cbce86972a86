package service

import (
	"context"
	"errors"
	"time"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/repository"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// TransactionStore is the storage surface for payment transactions
type TransactionStore interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	GetByID(ctx context.Context, id string) (*models.PaymentTransaction, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.PaymentTransaction, error)
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentTransaction, error)
	FindLiveByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error)
}

// OrderReader is the read surface the payment processor checks orders against
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// MethodReader is the read surface for stored payment methods
type MethodReader interface {
	GetByID(ctx context.Context, id string) (*models.PaymentMethod, error)
}

// PaymentService owns the payment transaction entity. Settlement itself is
// asynchronous: ProcessPayment only records the attempt and returns; the
// settlement processor advances it later.
type PaymentService struct {
	transactions    TransactionStore
	orders          OrderReader
	methods         MethodReader
	settlementDelay time.Duration
	logger          logger.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	transactions TransactionStore,
	orders OrderReader,
	methods MethodReader,
	settlementDelay time.Duration,
	logger logger.Logger,
) *PaymentService {
	return &PaymentService{
		transactions:    transactions,
		orders:          orders,
		methods:         methods,
		settlementDelay: settlementDelay,
		logger:          logger,
	}
}

// ProcessPayment records a settlement attempt for an approved order. The
// transaction is created in processing state with a settle-after time and
// returned immediately; the simulated gateway resolves it asynchronously.
func (s *PaymentService) ProcessPayment(ctx context.Context, actor models.Actor, orderID, methodID string) (*models.PaymentTransaction, error) {
	order, err := s.orders.GetByID(ctx, orderID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("order not found")
		}
		return nil, err
	}

	if order.UserID != actor.UserID {
		return nil, apperrors.NewNotFoundError("order not found")
	}

	if order.Status != models.OrderStatusApproved && order.Status != models.OrderStatusPaymentRequired {
		return nil, apperrors.NewInvalidTransitionError(
			"order is not awaiting payment")
	}

	method, err := s.methods.GetByID(ctx, methodID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("payment method not found")
		}
		return nil, err
	}

	if method.UserID != actor.UserID || !method.IsActive {
		return nil, apperrors.NewNotFoundError("payment method not found")
	}

	if _, err := s.transactions.FindLiveByOrder(ctx, orderID); err == nil {
		return nil, apperrors.NewDuplicatePaymentError("a payment already exists for this order")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	txn := models.NewPaymentTransaction(orderID, actor.UserID, methodID, order.TotalAmount, s.settlementDelay)

	if err := s.transactions.Create(ctx, txn); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// lost the race against a concurrent attempt
			return nil, apperrors.NewDuplicatePaymentError("a payment already exists for this order")
		}
		return nil, err
	}

	s.logger.Info("Payment initiated",
		"transactionID", txn.ID,
		"orderID", orderID,
		"userID", actor.UserID,
		"amount", txn.Amount,
		"settleAfter", txn.SettleAfter)

	return txn, nil
}

// GetTransaction retrieves one transaction, enforcing ownership for
// unprivileged actors
func (s *PaymentService) GetTransaction(ctx context.Context, actor models.Actor, id string) (*models.PaymentTransaction, error) {
	txn, err := s.transactions.GetByID(ctx, id)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("payment transaction not found")
		}
		return nil, err
	}

	if !actor.CanManageOrders() && txn.UserID != actor.UserID {
		return nil, apperrors.NewNotFoundError("payment transaction not found")
	}

	return txn, nil
}

// ListTransactions returns all transactions for privileged roles and the
// actor's own transactions otherwise
func (s *PaymentService) ListTransactions(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.PaymentTransaction, error) {
	if actor.CanManageOrders() {
		return s.transactions.GetAll(ctx, limit, offset)
	}

	return s.transactions.GetByUserID(ctx, actor.UserID, limit, offset)
}
