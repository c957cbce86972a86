package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/repository"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// Adjustment reasons. Consumption deducts stock and books an expense;
// production adds stock and books income; corrections touch stock only.
const (
	AdjustReasonConsumption = "consumption"
	AdjustReasonProduction  = "production"
	AdjustReasonCorrection  = "correction"
)

// InventoryStore is the storage surface for the inventory ledger
type InventoryStore interface {
	Create(ctx context.Context, item *models.InventoryItem) error
	GetByID(ctx context.Context, id string) (*models.InventoryItem, error)
	GetAll(ctx context.Context, limit, offset int) ([]*models.InventoryItem, error)
	AdjustQuantity(ctx context.Context, itemID string, delta int, deduct bool, reason string, finRecord *models.FinanceRecord) (*models.InventoryItem, error)
	SetQuantity(ctx context.Context, itemID string, quantity int) (*models.InventoryItem, error)
}

// InventoryService owns item quantity, reorder thresholds, and the coupling
// between stock movement and the finance ledger
type InventoryService struct {
	inventory InventoryStore
	logger    logger.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(inventory InventoryStore, logger logger.Logger) *InventoryService {
	return &InventoryService{
		inventory: inventory,
		logger:    logger,
	}
}

// CreateItem registers a new inventory item; privileged roles only
func (s *InventoryService) CreateItem(ctx context.Context, actor models.Actor, item *models.InventoryItem) (*models.InventoryItem, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("creating inventory items requires a privileged role")
	}

	if item.Name == "" {
		return nil, apperrors.NewValidationError("item name is required")
	}

	if item.Quantity < 0 || item.UnitPrice < 0 || item.ReorderLevel < 0 {
		return nil, apperrors.NewValidationError("quantity, unit price, and reorder level must not be negative")
	}

	item.Status = models.DeriveInventoryStatus(item.Quantity, item.ReorderLevel)
	item.CreatedAt = models.GetCurrentTime()
	item.UpdatedAt = item.CreatedAt

	if err := s.inventory.Create(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("Inventory item created", "itemID", item.ID, "name", item.Name, "quantity", item.Quantity)
	return item, nil
}

// GetItem retrieves one inventory item
func (s *InventoryService) GetItem(ctx context.Context, itemID string) (*models.InventoryItem, error) {
	item, err := s.inventory.GetByID(ctx, itemID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("inventory item not found")
		}
		return nil, err
	}

	return item, nil
}

// ListItems retrieves inventory items with pagination
func (s *InventoryService) ListItems(ctx context.Context, limit, offset int) ([]*models.InventoryItem, error) {
	return s.inventory.GetAll(ctx, limit, offset)
}

// AdjustQuantity applies a signed delta with ledger side effects: consumption
// books an expense at the supplied unit valuation, production books income.
// Consumption is rejected when it would drive quantity negative.
func (s *InventoryService) AdjustQuantity(
	ctx context.Context,
	actor models.Actor,
	itemID string,
	delta int,
	reason string,
	unitValuation float64,
) (*models.InventoryItem, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("adjusting inventory requires a privileged role")
	}

	if delta == 0 {
		return nil, apperrors.NewValidationError("delta must not be zero")
	}

	var finRecord *models.FinanceRecord
	deduct := false

	switch reason {
	case AdjustReasonConsumption:
		if delta >= 0 {
			return nil, apperrors.NewValidationError("consumption requires a negative delta")
		}
		deduct = true
		amount := decimal.NewFromFloat(unitValuation).Mul(decimal.NewFromInt(int64(-delta)))
		finRecord = models.NewFinanceRecord(
			models.FinanceRecordExpense,
			fmt.Sprintf("stock consumption of %d units from %s", -delta, itemID),
			amount,
			"inventory",
			&itemID,
		)
	case AdjustReasonProduction:
		if delta <= 0 {
			return nil, apperrors.NewValidationError("production requires a positive delta")
		}
		amount := decimal.NewFromFloat(unitValuation).Mul(decimal.NewFromInt(int64(delta)))
		finRecord = models.NewFinanceRecord(
			models.FinanceRecordIncome,
			fmt.Sprintf("production intake of %d units into %s", delta, itemID),
			amount,
			"inventory",
			&itemID,
		)
	case AdjustReasonCorrection:
		// stock moves, ledger does not
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown adjustment reason %q", reason))
	}

	item, err := s.inventory.AdjustQuantity(ctx, itemID, delta, deduct, reason, finRecord)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("inventory item not found")
		}
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, apperrors.NewConflictError("adjustment would drive stock negative")
		}
		return nil, err
	}

	s.logger.Info("Inventory adjusted",
		"itemID", itemID,
		"delta", delta,
		"reason", reason,
		"newQuantity", item.Quantity,
		"status", item.Status)

	return item, nil
}

// SetQuantity is an administrative correction that sets quantity directly
func (s *InventoryService) SetQuantity(ctx context.Context, actor models.Actor, itemID string, quantity int) (*models.InventoryItem, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("adjusting inventory requires a privileged role")
	}

	item, err := s.inventory.SetQuantity(ctx, itemID, quantity)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("inventory item not found")
		}
		return nil, err
	}

	return item, nil
}
