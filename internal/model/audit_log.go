package model

import (
	"time"
)

// AuditLog is an immutable record of a permission decision or state
// transition. Application logic only ever inserts rows; nothing updates
// or deletes them.
type AuditLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Owned     `gorm:"embedded"`
	Actor     string    `json:"actor" gorm:"type:varchar(64);index;not null"` // user id or "system"
	Action    string    `json:"action" gorm:"type:varchar(50);index;not null"`
	Entity    string    `json:"entity" gorm:"type:varchar(50);index;not null"`
	EntityID  string    `json:"entity_id" gorm:"type:varchar(64);index;not null"`
	Before    string    `json:"before,omitempty" gorm:"type:jsonb"`
	After     string    `json:"after,omitempty" gorm:"type:jsonb"`
	IPAddress string    `json:"ip_address,omitempty" gorm:"type:varchar(45)"`
	UserAgent string    `json:"user_agent,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}
