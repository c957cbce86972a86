package models

import (
	"time"
)

// InventoryStatus is the derived availability status of an inventory item
type InventoryStatus string

const (
	InventoryStatusAvailable  InventoryStatus = "Available"
	InventoryStatusLowStock   InventoryStatus = "Low Stock"
	InventoryStatusOutOfStock InventoryStatus = "Out of Stock"
)

// Inventory categories
const (
	CategoryFruit      = "fruit"
	CategoryVegetable  = "vegetable"
	CategoryGrain      = "grain"
	CategoryProcessed  = "processed"
	CategoryFertilizer = "fertilizer"
)

// DeriveInventoryStatus computes availability purely from quantity and reorder level
func DeriveInventoryStatus(quantity, reorderLevel int) InventoryStatus {
	switch {
	case quantity <= 0:
		return InventoryStatusOutOfStock
	case quantity <= reorderLevel:
		return InventoryStatusLowStock
	default:
		return InventoryStatusAvailable
	}
}

// InventoryItem represents a stock item in the ledger
type InventoryItem struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	Category       string          `db:"category" json:"category"`
	Quantity       int             `db:"quantity" json:"quantity"`
	Unit           string          `db:"unit" json:"unit"`
	UnitPrice      float64         `db:"unit_price" json:"unit_price"`
	ReorderLevel   int             `db:"reorder_level" json:"reorder_level"`
	Status         InventoryStatus `db:"status" json:"status"`
	HarvestBatchID *string         `db:"harvest_batch_id" json:"harvest_batch_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// NewInventoryItem creates a new inventory item with derived status.
// The sequential identifier is assigned by the store on insert.
func NewInventoryItem(name, category string, quantity int, unit string, unitPrice float64, reorderLevel int) *InventoryItem {
	now := GetCurrentTime()

	return &InventoryItem{
		Name:         name,
		Category:     category,
		Quantity:     quantity,
		Unit:         unit,
		UnitPrice:    unitPrice,
		ReorderLevel: reorderLevel,
		Status:       DeriveInventoryStatus(quantity, reorderLevel),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
