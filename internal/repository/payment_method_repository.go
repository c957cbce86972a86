package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/farmgate/agromarket-api/internal/database"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// PaymentMethodRepository handles database operations for stored payment methods
type PaymentMethodRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewPaymentMethodRepository creates a new PaymentMethodRepository
func NewPaymentMethodRepository(db *database.Database, logger logger.Logger) *PaymentMethodRepository {
	return &PaymentMethodRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new payment method. The first active method for a user, or
// an explicit default request, becomes the default; clearing the old default
// and setting the new one happen in the same transaction.
func (r *PaymentMethodRepository) Create(ctx context.Context, method *models.PaymentMethod, makeDefault bool) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		var activeCount int

		err := tx.GetContext(
			ctx,
			&activeCount,
			`SELECT COUNT(*) FROM payment_methods WHERE user_id = $1 AND is_active`,
			method.UserID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		method.IsDefault = makeDefault || activeCount == 0

		if method.IsDefault {
			if err := clearDefaults(ctx, tx, method.UserID); err != nil {
				return err
			}
		}

		query := `
			INSERT INTO payment_methods (
				id, user_id, card_number, holder_name, expiry_month, expiry_year,
				network, is_default, is_active, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`

		_, err = tx.ExecContext(
			ctx,
			query,
			method.ID,
			method.UserID,
			method.CardNumber,
			method.HolderName,
			method.ExpiryMonth,
			method.ExpiryYear,
			method.Network,
			method.IsDefault,
			method.IsActive,
			method.CreatedAt,
		)

		if err != nil {
			r.logger.Error("Failed to create payment method", "error", err, "methodID", method.ID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		return nil
	})
}

func clearDefaults(ctx context.Context, tx *sqlx.Tx, userID string) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1 AND is_active`,
		userID,
	)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// GetByID retrieves a payment method by its ID
func (r *PaymentMethodRepository) GetByID(ctx context.Context, id string) (*models.PaymentMethod, error) {
	query := `
		SELECT id, user_id, card_number, holder_name, expiry_month, expiry_year,
			   network, is_default, is_active, created_at
		FROM payment_methods
		WHERE id = $1
	`

	var method models.PaymentMethod
	err := r.db.DB.GetContext(ctx, &method, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get payment method", "error", err, "methodID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &method, nil
}

// ListActiveByUser retrieves all active payment methods owned by a user
func (r *PaymentMethodRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.PaymentMethod, error) {
	query := `
		SELECT id, user_id, card_number, holder_name, expiry_month, expiry_year,
			   network, is_default, is_active, created_at
		FROM payment_methods
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC
	`

	var methods []*models.PaymentMethod
	err := r.db.DB.SelectContext(ctx, &methods, query, userID)

	if err != nil {
		r.logger.Error("Failed to list payment methods", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return methods, nil
}

// SetDefault marks one active method as default and clears every other active
// method owned by the user, in a single transaction
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, userID, methodID string) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		var exists bool

		err := tx.GetContext(
			ctx,
			&exists,
			`SELECT EXISTS(SELECT 1 FROM payment_methods WHERE id = $1 AND user_id = $2 AND is_active)`,
			methodID, userID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if !exists {
			return ErrNotFound
		}

		if err := clearDefaults(ctx, tx, userID); err != nil {
			return err
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE payment_methods SET is_default = TRUE WHERE id = $1`,
			methodID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		return nil
	})
}

// Deactivate soft-deletes a method. If it was the default, the most recently
// added remaining active method is promoted within the same transaction.
func (r *PaymentMethodRepository) Deactivate(ctx context.Context, userID, methodID string) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		var wasDefault bool

		err := tx.GetContext(
			ctx,
			&wasDefault,
			`SELECT is_default FROM payment_methods WHERE id = $1 AND user_id = $2 AND is_active FOR UPDATE`,
			methodID, userID,
		)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE payment_methods SET is_active = FALSE, is_default = FALSE WHERE id = $1`,
			methodID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if wasDefault {
			_, err = tx.ExecContext(ctx, `
				UPDATE payment_methods SET is_default = TRUE
				WHERE id = (
					SELECT id FROM payment_methods
					WHERE user_id = $1 AND is_active
					ORDER BY created_at DESC
					LIMIT 1
				)
			`, userID)

			if err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
		}

		return nil
	})
}
