package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/farmgate/agromarket-api/internal/database"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// OrderRepository handles database operations for orders and their line items
type OrderRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *database.Database, logger logger.Logger) *OrderRepository {
	return &OrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new order, its line items, and the created event in one transaction.
// The sequential identifier is assigned here and written back to the order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, msg *models.OutboxMessage) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		id, err := nextSequentialID(ctx, tx, models.PrefixOrder)

		if err != nil {
			return err
		}
		order.ID = id

		query := `
			INSERT INTO orders (id, user_id, status, total_amount, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err = tx.ExecContext(
			ctx,
			query,
			order.ID,
			order.UserID,
			order.Status,
			order.TotalAmount,
			order.Notes,
			order.CreatedAt,
			order.UpdatedAt,
		)

		if err != nil {
			r.logger.Error("Failed to create order", "error", err, "orderID", order.ID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID

			if err := insertOrderItem(ctx, tx, &order.Items[i]); err != nil {
				return err
			}
		}

		if msg != nil {
			// the outbox event references the freshly assigned id
			msg.AggregateID = order.ID
			if err := insertOutboxMessage(ctx, tx, msg); err != nil {
				return err
			}
		}

		return nil
	})
}

func insertOrderItem(ctx context.Context, tx *sqlx.Tx, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, item_id, name, quantity, unit, unit_price, category, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		item.OrderID,
		item.ItemID,
		item.Name,
		item.Quantity,
		item.Unit,
		item.UnitPrice,
		item.Category,
		item.AddedBy,
	).Scan(&item.ID)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// recomputeTotal rewrites the order total as the sum over its current line items
func recomputeTotal(ctx context.Context, tx *sqlx.Tx, orderID string, now time.Time) error {
	query := `
		UPDATE orders
		SET total_amount = COALESCE(
			(SELECT SUM(quantity * unit_price) FROM order_items WHERE order_id = $1), 0
		), updated_at = $2
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query, orderID, now)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves an order with its line items
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, notes, approved_by, approved_at,
			   delivery_assignee, delivery_assigned_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order
	err := r.db.DB.GetContext(ctx, &order, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get order by ID", "error", err, "orderID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, []*models.Order{&order}); err != nil {
		return nil, err
	}

	return &order, nil
}

// GetAll retrieves all orders with optional limit and offset
func (r *OrderRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, notes, approved_by, approved_at,
			   delivery_assignee, delivery_assigned_at, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to get all orders", "error", err, "limit", limit, "offset", offset)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetByUserID retrieves all orders owned by a specific user
func (r *OrderRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.Order, error) {
	query := `
		SELECT id, user_id, status, total_amount, notes, approved_by, approved_at,
			   delivery_assignee, delivery_assigned_at, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	var orders []*models.Order
	err := r.db.DB.SelectContext(ctx, &orders, query, userID, limit, offset)

	if err != nil {
		r.logger.Error("Failed to get orders by user ID", "error", err, "userID", userID)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

// attachItems loads line items for the given orders
func (r *OrderRepository) attachItems(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, 0, len(orders))
	byID := make(map[string]*models.Order, len(orders))

	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
		o.Items = []models.OrderItem{}
	}

	query, args, err := sqlx.In(`
		SELECT id, order_id, item_id, name, quantity, unit, unit_price, category, added_by
		FROM order_items
		WHERE order_id IN (?)
		ORDER BY id ASC
	`, ids)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	query = r.db.DB.Rebind(query)

	var items []models.OrderItem

	if err := r.db.DB.SelectContext(ctx, &items, query, args...); err != nil {
		r.logger.Error("Failed to load order items", "error", err)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	return nil
}

// UpdateStatus performs a conditional status transition guarded on the expected
// prior status, so two concurrent transitions cannot both succeed. Approval
// metadata and the status change event are written in the same transaction.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	orderID string,
	from, to models.OrderStatus,
	approvedBy *string,
	approvedAt *time.Time,
	msg *models.OutboxMessage,
) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		query := `
			UPDATE orders
			SET status = $1,
				approved_by = COALESCE($2, approved_by),
				approved_at = COALESCE($3, approved_at),
				updated_at = $4
			WHERE id = $5 AND status = $6
		`

		result, err := tx.ExecContext(ctx, query, to, approvedBy, approvedAt, models.GetCurrentTime(), orderID, from)

		if err != nil {
			r.logger.Error("Failed to update order status", "error", err, "orderID", orderID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		rowsAffected, err := result.RowsAffected()

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if rowsAffected == 0 {
			// Distinguish a missing order from a lost race
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID); err != nil {
				return fmt.Errorf("%w: %v", ErrDatabase, err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStatusConflict
		}

		if msg != nil {
			if err := insertOutboxMessage(ctx, tx, msg); err != nil {
				return err
			}
		}

		return nil
	})
}

// AddItems appends line items to an order and recomputes the total
func (r *OrderRepository) AddItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		for i := range items {
			items[i].OrderID = orderID

			if err := insertOrderItem(ctx, tx, &items[i]); err != nil {
				return err
			}
		}

		return recomputeTotal(ctx, tx, orderID, models.GetCurrentTime())
	})
}

// UpdateItemQuantity changes a line item quantity and recomputes the total
func (r *OrderRepository) UpdateItemQuantity(ctx context.Context, orderID string, itemRowID int64, quantity int) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE order_items SET quantity = $1 WHERE id = $2 AND order_id = $3`,
			quantity, itemRowID, orderID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		rowsAffected, err := result.RowsAffected()

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if rowsAffected == 0 {
			return ErrNotFound
		}

		return recomputeTotal(ctx, tx, orderID, models.GetCurrentTime())
	})
}

// DeleteItem removes a line item and recomputes the total
func (r *OrderRepository) DeleteItem(ctx context.Context, orderID string, itemRowID int64) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`DELETE FROM order_items WHERE id = $1 AND order_id = $2`,
			itemRowID, orderID,
		)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		rowsAffected, err := result.RowsAffected()

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if rowsAffected == 0 {
			return ErrNotFound
		}

		return recomputeTotal(ctx, tx, orderID, models.GetCurrentTime())
	})
}

// SetDelivery attaches or clears the delivery assignee tag and timestamp
func (r *OrderRepository) SetDelivery(ctx context.Context, orderID string, assignee *string, assignedAt *time.Time) error {
	query := `
		UPDATE orders
		SET delivery_assignee = $1, delivery_assigned_at = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := r.db.DB.ExecContext(ctx, query, assignee, assignedAt, models.GetCurrentTime(), orderID)

	if err != nil {
		r.logger.Error("Failed to set delivery assignee", "error", err, "orderID", orderID)
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	rowsAffected, err := result.RowsAffected()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
