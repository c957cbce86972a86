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

const inventoryColumns = `
	id, name, category, quantity, unit, unit_price, reorder_level, status,
	harvest_batch_id, created_at, updated_at
`

// InventoryRepository handles database operations for the inventory ledger
type InventoryRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewInventoryRepository creates a new InventoryRepository
func NewInventoryRepository(db *database.Database, logger logger.Logger) *InventoryRepository {
	return &InventoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new inventory item, assigning its sequential identifier
func (r *InventoryRepository) Create(ctx context.Context, item *models.InventoryItem) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		id, err := nextSequentialID(ctx, tx, models.PrefixInventory)

		if err != nil {
			return err
		}
		item.ID = id

		query := `
			INSERT INTO inventory_items (
				id, name, category, quantity, unit, unit_price, reorder_level,
				status, harvest_batch_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		_, err = tx.ExecContext(
			ctx,
			query,
			item.ID,
			item.Name,
			item.Category,
			item.Quantity,
			item.Unit,
			item.UnitPrice,
			item.ReorderLevel,
			item.Status,
			item.HarvestBatchID,
			item.CreatedAt,
			item.UpdatedAt,
		)

		if err != nil {
			r.logger.Error("Failed to create inventory item", "error", err, "itemID", item.ID)
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		return nil
	})
}

// GetByID retrieves an inventory item by its ID
func (r *InventoryRepository) GetByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1`

	var item models.InventoryItem
	err := r.db.DB.GetContext(ctx, &item, query, id)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to get inventory item", "error", err, "itemID", id)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return &item, nil
}

// GetAll retrieves all inventory items with pagination
func (r *InventoryRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + `
		FROM inventory_items
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	var items []*models.InventoryItem
	err := r.db.DB.SelectContext(ctx, &items, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list inventory items", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return items, nil
}

// AdjustQuantity applies a signed delta, recomputes the derived status, and
// appends the finance record and the stock movement event in one transaction.
// Deducting adjustments are rejected when they would drive quantity negative.
func (r *InventoryRepository) AdjustQuantity(
	ctx context.Context,
	itemID string,
	delta int,
	deduct bool,
	reason string,
	finRecord *models.FinanceRecord,
) (*models.InventoryItem, error) {
	var updated models.InventoryItem

	err := runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		var item models.InventoryItem

		query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &item, query, itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		newQuantity := item.Quantity + delta

		if deduct && newQuantity < 0 {
			return ErrInsufficientStock
		}

		item.Quantity = newQuantity
		item.Status = models.DeriveInventoryStatus(newQuantity, item.ReorderLevel)
		item.UpdatedAt = models.GetCurrentTime()

		_, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = $1, status = $2, updated_at = $3
			WHERE id = $4
		`, item.Quantity, item.Status, item.UpdatedAt, item.ID)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		if finRecord != nil {
			if err := insertFinanceRecord(ctx, tx, finRecord); err != nil {
				return err
			}
		}

		msg, err := models.NewInventoryAdjustedEvent(&item, delta, reason)

		if err != nil {
			return err
		}

		if err := insertOutboxMessage(ctx, tx, msg); err != nil {
			return err
		}

		updated = item
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// SetQuantity is an administrative correction: quantity is set directly and
// the derived status recomputed, with no finance coupling
func (r *InventoryRepository) SetQuantity(ctx context.Context, itemID string, quantity int) (*models.InventoryItem, error) {
	var updated models.InventoryItem

	err := runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		var item models.InventoryItem

		query := `SELECT ` + inventoryColumns + ` FROM inventory_items WHERE id = $1 FOR UPDATE`

		if err := tx.GetContext(ctx, &item, query, itemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		item.Quantity = quantity
		item.Status = models.DeriveInventoryStatus(quantity, item.ReorderLevel)
		item.UpdatedAt = models.GetCurrentTime()

		_, err := tx.ExecContext(ctx, `
			UPDATE inventory_items SET quantity = $1, status = $2, updated_at = $3
			WHERE id = $4
		`, item.Quantity, item.Status, item.UpdatedAt, item.ID)

		if err != nil {
			return fmt.Errorf("%w: %v", ErrDatabase, err)
		}

		updated = item
		return nil
	})

	if err != nil {
		return nil, err
	}

	return &updated, nil
}
