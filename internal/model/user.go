package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents the user model stored in the database. Role mutations
// are Admin-only operations; users are deactivated, never deleted.
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Owned     `gorm:"embedded"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"type:varchar(255)"`
	Role      string         `json:"role" gorm:"type:varchar(20);not null;default:'STAFF'"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
