package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/farmgate/agromarket-api/internal/database"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

const transactionColumns = `
	id, order_id, user_id, payment_method_id, amount, status,
	gateway_response, failure_reason, settle_after, processed_at, created_at
`

// PaymentTransactionRepository handles database operations for payment transactions
type PaymentTransactionRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPaymentTransactionRepository creates a new PaymentTransactionRepository
func NewPaymentTransactionRepository(db *database.Database, logger logger.Logger) *PaymentTransactionRepository {
	return &PaymentTransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new settlement attempt. A partial unique index on the order
// reference rejects a second non-failed transaction for the same order even
// under concurrent calls; the violation surfaces as ErrDuplicate.
func (r *PaymentTransactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	err := runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		id, err := nextSequentialID(ctx, tx, models.PrefixPayment)

		if err != nil {
			return err
		}
		txn.ID = id

		query := `
			INSERT INTO payment_transactions (
				id, order_id, user_id, payment_method_id, amount, status,
				settle_after, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		_, err = tx.ExecContext(
			ctx,
			query,
			txn.ID,
			txn.OrderID,
			txn.UserID,
			txn.PaymentMethodID,
			txn.Amount,
			txn.Status,
			txn.SettleAfter,
			txn.CreatedAt,
		)

		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDuplicate
			}
			r.logger.Error("Failed to create payment transaction", "error", err, "orderID", txn.OrderID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		return nil
	})

	return err
}

// GetByID retrieves a payment transaction by its ID
func (r *PaymentTransactionRepository) GetByID(ctx context.Context, id string) (*models.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`

	var txn models.PaymentTransaction
	err := r.db.DB.GetContext(ctx, &txn, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get payment transaction", "error", err, "transactionID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &txn, nil
}

// GetAll retrieves all payment transactions with pagination
func (r *PaymentTransactionRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var txns []*models.PaymentTransaction
	err := r.db.DB.SelectContext(ctx, &txns, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list payment transactions", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return txns, nil
}

// GetByUserID retrieves all payment transactions created by a user
func (r *PaymentTransactionRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var txns []*models.PaymentTransaction
	err := r.db.DB.SelectContext(ctx, &txns, query, userID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list payment transactions by user", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return txns, nil
}

// FindLiveByOrder returns the non-failed transaction for an order, if any
func (r *PaymentTransactionRepository) FindLiveByOrder(ctx context.Context, orderID string) (*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE order_id = $1 AND status <> $2
	`

	var txn models.PaymentTransaction
	err := r.db.DB.GetContext(ctx, &txn, query, orderID, models.TransactionStatusFailed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to find transaction for order", "error", err, "orderID", orderID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &txn, nil
}

// GetDueProcessing returns processing transactions whose settlement time has arrived
func (r *PaymentTransactionRepository) GetDueProcessing(ctx context.Context, limit int) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = $1 AND settle_after <= NOW()
		ORDER BY settle_after ASC
		LIMIT $2
	`

	var txns []*models.PaymentTransaction
	err := r.db.DB.SelectContext(ctx, &txns, query, models.TransactionStatusProcessing, limit)

	if err != nil {
		r.logger.Error("Failed to get due transactions", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return txns, nil
}

// GetStuckProcessing returns processing transactions whose settlement time
// passed before the cutoff and that never resolved
func (r *PaymentTransactionRepository) GetStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*models.PaymentTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status = $1 AND settle_after <= $2
		ORDER BY settle_after ASC
		LIMIT $3
	`

	var txns []*models.PaymentTransaction
	err := r.db.DB.SelectContext(ctx, &txns, query, models.TransactionStatusProcessing, cutoff, limit)

	if err != nil {
		r.logger.Error("Failed to get stuck transactions", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return txns, nil
}

// CompleteSettlement marks a processing transaction as completed and, in the
// same transaction, advances the owning order to completed. Order completion
// only ever happens here, as a reaction to a settled transaction.
func (r *PaymentTransactionRepository) CompleteSettlement(ctx context.Context, txn *models.PaymentTransaction, gatewayRef string) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		now := models.GetCurrentTime()

		result, err := tx.ExecContext(ctx, `
			UPDATE payment_transactions
			SET status = $1, gateway_response = $2, processed_at = $3
			WHERE id = $4 AND status = $5
		`, models.TransactionStatusCompleted, gatewayRef, now, txn.ID, models.TransactionStatusProcessing)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		} else if n == 0 {
			return ErrStatusConflict
		}

		var oldStatus models.OrderStatus

		err = tx.GetContext(ctx, &oldStatus, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, txn.OrderID)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		result, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = $2
			WHERE id = $3 AND status IN ($4, $5)
		`, models.OrderStatusCompleted, now, txn.OrderID,
			models.OrderStatusApproved, models.OrderStatusPaymentRequired)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		} else if n == 0 {
			return ErrStatusConflict
		}

		settled := *txn
		settled.Status = models.TransactionStatusCompleted
		settled.GatewayResponse = &gatewayRef
		settled.ProcessedAt = &now

		paymentMsg, err := models.NewPaymentCompletedEvent(&settled)

		if err != nil {
			return err
		}

		if err := insertOutboxMessage(ctx, tx, paymentMsg); err != nil {
			return err
		}

		order := models.Order{ID: txn.OrderID, UserID: txn.UserID, Status: models.OrderStatusCompleted}
		orderMsg, err := models.NewOrderStatusChangedEvent(&order, oldStatus)

		if err != nil {
			return err
		}

		return insertOutboxMessage(ctx, tx, orderMsg)
	})
}

// FailSettlement marks a processing transaction as failed with a reason.
// The owning order keeps its prior status so the purchaser can retry.
func (r *PaymentTransactionRepository) FailSettlement(ctx context.Context, txn *models.PaymentTransaction, reason string) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		now := models.GetCurrentTime()

		result, err := tx.ExecContext(ctx, `
			UPDATE payment_transactions
			SET status = $1, failure_reason = $2, processed_at = $3
			WHERE id = $4 AND status = $5
		`, models.TransactionStatusFailed, reason, now, txn.ID, models.TransactionStatusProcessing)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if n, err := result.RowsAffected(); err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		} else if n == 0 {
			return ErrStatusConflict
		}

		msg, err := models.NewPaymentFailedEvent(txn, reason)

		if err != nil {
			return err
		}

		return insertOutboxMessage(ctx, tx, msg)
	})
}
