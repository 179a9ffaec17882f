package model

import (
	"time"

	"gorm.io/gorm"
)

// Supplier represents the supplier model stored in the database
type Supplier struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Owned         `gorm:"embedded"`
	Name          string         `json:"name" gorm:"type:varchar(100);index;not null"`
	ContactPerson string         `json:"contact_person" gorm:"type:varchar(100)"`
	Email         string         `json:"email" gorm:"type:varchar(100)"`
	Phone         string         `json:"phone" gorm:"type:varchar(20)"`
	Address       string         `json:"address" gorm:"type:text"`
	Notes         string         `json:"notes" gorm:"type:text"`
	IsActive      bool           `json:"is_active" gorm:"default:true"`
	CreatedBy     uint           `json:"created_by" gorm:"index"`
	UpdatedBy     uint           `json:"updated_by"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
