package tenant

import (
	"context"
	"errors"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"gorm.io/gorm"
)

// GormOrgLookup resolves subdomains against the organizations table
type GormOrgLookup struct {
	db *gorm.DB
}

// NewGormOrgLookup creates a lookup backed by the given database
func NewGormOrgLookup(db *gorm.DB) *GormOrgLookup {
	return &GormOrgLookup{db: db}
}

// IDBySubdomain returns the org id for a subdomain token
func (l *GormOrgLookup) IDBySubdomain(ctx context.Context, subdomain string) (uint, error) {
	var org model.Organization
	err := l.db.WithContext(ctx).Where("subdomain = ?", subdomain).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.New(apperr.NotFound, "organization not found")
		}
		return 0, apperr.Wrap(apperr.Internal, "organization lookup failed", err)
	}
	return org.ID, nil
}
