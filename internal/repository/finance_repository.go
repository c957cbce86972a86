package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/farmgate/agromarket-api/internal/database"
	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// FinanceRepository handles database operations for the append-only finance ledger.
// Records are created and read, never updated or deleted.
type FinanceRepository struct {
	db     *database.Database
	logger logger.Logger
}

// NewFinanceRepository creates a new FinanceRepository
func NewFinanceRepository(db *database.Database, logger logger.Logger) *FinanceRepository {
	return &FinanceRepository{
		db:     db,
		logger: logger,
	}
}

// insertFinanceRecord writes a ledger entry inside an open transaction,
// assigning its sequential identifier
func insertFinanceRecord(ctx context.Context, tx *sqlx.Tx, record *models.FinanceRecord) error {
	id, err := nextSequentialID(ctx, tx, models.PrefixFinance)

	if err != nil {
		return err
	}
	record.ID = id

	query := `
		INSERT INTO finance_records (
			id, record_type, description, amount, record_date, category,
			inventory_item_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.ExecContext(
		ctx,
		query,
		record.ID,
		record.Type,
		record.Description,
		record.Amount,
		record.Date,
		record.Category,
		record.InventoryItemID,
		record.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}

// Create appends a new ledger entry
func (r *FinanceRepository) Create(ctx context.Context, record *models.FinanceRecord) error {
	return runInTx(ctx, r.db.DB, func(tx *sqlx.Tx) error {
		return insertFinanceRecord(ctx, tx, record)
	})
}

// GetAll retrieves ledger entries with pagination, newest first
func (r *FinanceRepository) GetAll(ctx context.Context, limit, offset int) ([]*models.FinanceRecord, error) {
	query := `
		SELECT id, record_type, description, amount, record_date, category,
			   inventory_item_id, created_at
		FROM finance_records
		ORDER BY record_date DESC
		LIMIT $1 OFFSET $2
	`

	var records []*models.FinanceRecord
	err := r.db.DB.SelectContext(ctx, &records, query, limit, offset)

	if err != nil {
		r.logger.Error("Failed to list finance records", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return records, nil
}

// Summary aggregates the ledger into total income, total expense, and net profit
func (r *FinanceRepository) Summary(ctx context.Context) (*models.FinanceSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE record_type = 'income'), 0) AS total_income,
			COALESCE(SUM(amount) FILTER (WHERE record_type = 'expense'), 0) AS total_expense
		FROM finance_records
	`

	var summary models.FinanceSummary
	err := r.db.DB.GetContext(ctx, &summary, query)

	if err != nil {
		r.logger.Error("Failed to compute finance summary", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	summary.NetProfit = summary.TotalIncome.Sub(summary.TotalExpense)
	return &summary, nil
}
