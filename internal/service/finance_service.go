package service

import (
	"context"

	"github.com/farmgate/agromarket-api/internal/models"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// FinanceStore is the storage surface for the finance ledger
type FinanceStore interface {
	Create(ctx context.Context, record *models.FinanceRecord) error
	GetAll(ctx context.Context, limit, offset int) ([]*models.FinanceRecord, error)
	Summary(ctx context.Context) (*models.FinanceSummary, error)
}

// FinanceService exposes the append-only income and expense ledger
type FinanceService struct {
	records FinanceStore
	logger  logger.Logger
}

// NewFinanceService creates a new FinanceService
func NewFinanceService(records FinanceStore, logger logger.Logger) *FinanceService {
	return &FinanceService{
		records: records,
		logger:  logger,
	}
}

// CreateRecord appends a manual ledger entry; privileged roles only.
// Most records arrive through inventory adjustments and settlements instead.
func (s *FinanceService) CreateRecord(ctx context.Context, actor models.Actor, record *models.FinanceRecord) (*models.FinanceRecord, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("writing finance records requires a privileged role")
	}

	if record.Type != models.FinanceRecordIncome && record.Type != models.FinanceRecordExpense {
		return nil, apperrors.NewValidationError("record type must be income or expense")
	}

	if record.Amount.IsNegative() {
		return nil, apperrors.NewValidationError("amount must not be negative")
	}

	if record.Description == "" {
		return nil, apperrors.NewValidationError("description is required")
	}

	record.Date = models.GetCurrentTime()
	record.CreatedAt = record.Date

	if err := s.records.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Finance record created",
		"recordID", record.ID,
		"type", record.Type,
		"amount", record.Amount.String())

	return record, nil
}

// ListRecords retrieves ledger entries with pagination; privileged roles only
func (s *FinanceService) ListRecords(ctx context.Context, actor models.Actor, limit, offset int) ([]*models.FinanceRecord, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("reading the finance ledger requires a privileged role")
	}

	return s.records.GetAll(ctx, limit, offset)
}

// Summary aggregates the ledger into totals and net profit; privileged roles only
func (s *FinanceService) Summary(ctx context.Context, actor models.Actor) (*models.FinanceSummary, error) {
	if !actor.CanManageOrders() {
		return nil, apperrors.NewForbiddenError("reading the finance ledger requires a privileged role")
	}

	return s.records.Summary(ctx)
}
