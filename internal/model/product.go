package model

import (
	"time"

	"gorm.io/gorm"
)

// Product represents the product master data
type Product struct {
	ID            uint           `json:"id" gorm:"primarykey"`
	Owned         `gorm:"embedded"`
	SKU           string         `json:"sku" gorm:"type:varchar(100);index;not null"`
	Name          string         `json:"name" gorm:"type:varchar(255);not null"`
	Description   string         `json:"description" gorm:"type:text"`
	Category      string         `json:"category" gorm:"type:varchar(100)"`
	MinStockLevel int            `json:"min_stock_level" gorm:"default:0"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
