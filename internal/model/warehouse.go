package model

import (
	"time"

	"gorm.io/gorm"
)

// Warehouse represents a storage location belonging to one organization
type Warehouse struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Owned     `gorm:"embedded"`
	Name      string         `json:"name" gorm:"type:varchar(100);not null"`
	Location  string         `json:"location" gorm:"type:varchar(255);not null"`
	Capacity  int            `json:"capacity" gorm:"default:0"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
