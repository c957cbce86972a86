package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinanceRecordType is income or expense
type FinanceRecordType string

const (
	FinanceRecordIncome  FinanceRecordType = "income"
	FinanceRecordExpense FinanceRecordType = "expense"
)

// FinanceRecord is one append-only income/expense entry tied to an inventory event
type FinanceRecord struct {
	ID              string            `db:"id" json:"id"`
	Type            FinanceRecordType `db:"record_type" json:"type"`
	Description     string            `db:"description" json:"description"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	Date            time.Time         `db:"record_date" json:"date"`
	Category        string            `db:"category" json:"category"`
	InventoryItemID *string           `db:"inventory_item_id" json:"inventory_item_id,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// FinanceSummary aggregates the ledger
type FinanceSummary struct {
	TotalIncome  decimal.Decimal `db:"total_income" json:"total_income"`
	TotalExpense decimal.Decimal `db:"total_expense" json:"total_expense"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// NewFinanceRecord creates a new ledger entry.
// The sequential identifier is assigned by the store on insert.
func NewFinanceRecord(recordType FinanceRecordType, description string, amount decimal.Decimal, category string, inventoryItemID *string) *FinanceRecord {
	now := GetCurrentTime()

	return &FinanceRecord{
		Type:            recordType,
		Description:     description,
		Amount:          amount,
		Date:            now,
		Category:        category,
		InventoryItemID: inventoryItemID,
		CreatedAt:       now,
	}
}
