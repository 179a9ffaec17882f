package model

import (
	"time"
)

// Organization represents a tenant, the isolation boundary of the system.
// Every data-bearing entity carries exactly one org id.
type Organization struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(100);not null"`
	Subdomain string    `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
