package store

import (
	"context"
	"errors"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
	"gorm.io/gorm"
)

// PurchaseRequestStore is the relational implementation of the workflow
// store. Transitions compare the version the caller read in a single
// UPDATE, so two concurrent transition attempts cannot both succeed.
type PurchaseRequestStore struct {
	db *gorm.DB
}

var _ workflow.Store = (*PurchaseRequestStore)(nil)

// NewPurchaseRequestStore creates a store backed by the given database
func NewPurchaseRequestStore(db *gorm.DB) *PurchaseRequestStore {
	return &PurchaseRequestStore{db: db}
}

// Get loads one request with its line items. A cross-tenant id returns
// NotFound.
func (s *PurchaseRequestStore) Get(ctx context.Context, orgID, id uint) (*model.PurchaseRequest, error) {
	var pr model.PurchaseRequest
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND org_id = ?", id, orgID).
		First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "purchase request not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "failed to load purchase request", err)
	}
	return &pr, nil
}

// List returns the org's requests, newest first
func (s *PurchaseRequestStore) List(ctx context.Context, orgID uint, f workflow.ListFilter) ([]model.PurchaseRequest, error) {
	q := s.db.WithContext(ctx).
		Preload("Items").
		Where("org_id = ?", orgID)

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.RequesterID != 0 {
		q = q.Where("requester_id = ?", f.RequesterID)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	var requests []model.PurchaseRequest
	err := q.Order("created_at DESC").Limit(limit).Find(&requests).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to list purchase requests", err)
	}
	return requests, nil
}

// Count returns the number of requests the org has ever created
func (s *PurchaseRequestStore) Count(ctx context.Context, orgID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.PurchaseRequest{}).
		Where("org_id = ?", orgID).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to count purchase requests", err)
	}
	return count, nil
}

// Create inserts the draft and its creation audit entry in one
// transaction
func (s *PurchaseRequestStore) Create(ctx context.Context, pr *model.PurchaseRequest, entry audit.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pr).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create purchase request", err)
		}
		entry.EntityID = audit.EntityID(pr.ID)
		row := audit.Row(entry)
		if err := tx.Create(&row).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to record audit entry", err)
		}
		return nil
	})
}

// UpdateDraft rewrites a draft's notes and line items, version-guarded,
// together with its audit entry
func (s *PurchaseRequestStore) UpdateDraft(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, items []model.PurchaseRequestItem, entry audit.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PurchaseRequest{}).
			Where("id = ? AND org_id = ? AND version = ?", pr.ID, pr.OrgID, fromVersion).
			Updates(map[string]interface{}{
				"notes":      pr.Notes,
				"version":    fromVersion + 1,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return apperr.Wrap(apperr.Internal, "failed to update purchase request", res.Error)
		}
		if res.RowsAffected == 0 {
			return staleOrMissing(tx, pr)
		}

		if items != nil {
			if err := tx.Where("request_id = ?", pr.ID).Delete(&model.PurchaseRequestItem{}).Error; err != nil {
				return apperr.Wrap(apperr.Internal, "failed to clear line items", err)
			}
			for i := range items {
				items[i].RequestID = pr.ID
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return apperr.Wrap(apperr.Internal, "failed to write line items", err)
				}
			}
			pr.Items = items
		}

		row := audit.Row(entry)
		if err := tx.Create(&row).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to record audit entry", err)
		}
		pr.Version = fromVersion + 1
		return nil
	})
}

// Transition commits one state change and its audit entry atomically.
// The version read by the caller gates the write; a losing concurrent
// attempt gets StaleState.
func (s *PurchaseRequestStore) Transition(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, entry audit.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PurchaseRequest{}).
			Where("id = ? AND org_id = ? AND version = ?", pr.ID, pr.OrgID, fromVersion).
			Updates(map[string]interface{}{
				"status":           pr.Status,
				"approved_by":      pr.ApprovedBy,
				"rejected_by":      pr.RejectedBy,
				"rejection_reason": pr.RejectionReason,
				"submitted_at":     pr.SubmittedAt,
				"decided_at":       pr.DecidedAt,
				"version":          fromVersion + 1,
				"updated_at":       time.Now().UTC(),
			})
		if res.Error != nil {
			return apperr.Wrap(apperr.Internal, "failed to transition purchase request", res.Error)
		}
		if res.RowsAffected == 0 {
			return staleOrMissing(tx, pr)
		}

		row := audit.Row(entry)
		if err := tx.Create(&row).Error; err != nil {
			return apperr.Wrap(apperr.Internal, "failed to record audit entry", err)
		}
		pr.Version = fromVersion + 1
		return nil
	})
}

// StaleDrafts returns drafts older than the cutoff across all orgs, for
// the retention sweep
func (s *PurchaseRequestStore) StaleDrafts(ctx context.Context, cutoff time.Time) ([]model.PurchaseRequest, error) {
	var drafts []model.PurchaseRequest
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", model.StatusDraft, cutoff).
		Find(&drafts).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to query stale drafts", err)
	}
	return drafts, nil
}

// staleOrMissing distinguishes a lost version race from a vanished row
func staleOrMissing(tx *gorm.DB, pr *model.PurchaseRequest) error {
	var count int64
	if err := tx.Model(&model.PurchaseRequest{}).
		Where("id = ? AND org_id = ?", pr.ID, pr.OrgID).
		Count(&count).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to re-check purchase request", err)
	}
	if count == 0 {
		return apperr.New(apperr.NotFound, "purchase request not found")
	}
	return apperr.New(apperr.StaleState, "purchase request was modified concurrently, re-read and retry")
}
