package model

import (
	"time"
)

// MovementType enumerates stock movement kinds
type MovementType string

const (
	MovementIn          MovementType = "IN"
	MovementOut         MovementType = "OUT"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementTransferOut MovementType = "TRANSFER_OUT"
	MovementAdjustment  MovementType = "ADJUSTMENT"
)

// SignedQuantity returns the quantity with the sign implied by the
// movement type, for stock level aggregation
func (m MovementType) SignedQuantity(qty int) int {
	switch m {
	case MovementOut, MovementTransferOut:
		return -qty
	default:
		return qty
	}
}

// StockMovement records a single change of on-hand stock. Movements are
// append-only; stock levels are derived by aggregation.
type StockMovement struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Owned       `gorm:"embedded"`
	ProductID   uint         `json:"product_id" gorm:"index;not null"`
	WarehouseID uint         `json:"warehouse_id" gorm:"index;not null"`
	Type        MovementType `json:"type" gorm:"type:varchar(20);not null"`
	Quantity    int          `json:"quantity" gorm:"not null"`
	Reference   string       `json:"reference" gorm:"type:varchar(100)"`
	Notes       string       `json:"notes" gorm:"type:text"`
	CreatedBy   uint         `json:"created_by" gorm:"index;not null"`
	CreatedAt   time.Time    `json:"created_at"`
}
