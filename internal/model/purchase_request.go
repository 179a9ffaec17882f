package model

import (
	"time"
)

// PurchaseRequestStatus enumerates workflow states. Draft is initial;
// Approved, Rejected and Discarded are terminal.
type PurchaseRequestStatus string

const (
	StatusDraft     PurchaseRequestStatus = "DRAFT"
	StatusSubmitted PurchaseRequestStatus = "SUBMITTED"
	StatusApproved  PurchaseRequestStatus = "APPROVED"
	StatusRejected  PurchaseRequestStatus = "REJECTED"
	StatusDiscarded PurchaseRequestStatus = "DISCARDED"
)

// Terminal reports whether the state admits no further transitions
func (s PurchaseRequestStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusDiscarded:
		return true
	}
	return false
}

// PurchaseRequest is the workflow subject. The Version column backs
// optimistic concurrency control: every transition compares and bumps it
// in a single statement, so two concurrent transition attempts cannot
// both succeed.
type PurchaseRequest struct {
	ID              uint                  `json:"id" gorm:"primaryKey"`
	Owned           `gorm:"embedded"`
	RequestNumber   string                `json:"request_number" gorm:"type:varchar(20);index;not null"`
	Status          PurchaseRequestStatus `json:"status" gorm:"type:varchar(20);index;not null;default:'DRAFT'"`
	RequesterID     uint                  `json:"requester_id" gorm:"index;not null"`
	ApprovedBy      *uint                 `json:"approved_by,omitempty"`
	RejectedBy      *uint                 `json:"rejected_by,omitempty"`
	RejectionReason string                `json:"rejection_reason,omitempty" gorm:"type:text"`
	Notes           string                `json:"notes" gorm:"type:text"`
	Version         uint64                `json:"version" gorm:"not null;default:1"`
	SubmittedAt     *time.Time            `json:"submitted_at,omitempty"`
	DecidedAt       *time.Time            `json:"decided_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`

	Items []PurchaseRequestItem `json:"items" gorm:"foreignKey:RequestID"`
}

// PurchaseRequestItem is one ordered line of a purchase request
type PurchaseRequestItem struct {
	ID             uint     `json:"id" gorm:"primaryKey"`
	RequestID      uint     `json:"request_id" gorm:"index;not null"`
	ProductID      uint     `json:"product_id" gorm:"index;not null"`
	Quantity       int      `json:"quantity" gorm:"not null"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty"`
	SupplierID     *uint    `json:"supplier_id,omitempty"`
}
