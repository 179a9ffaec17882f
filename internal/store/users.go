package store

import (
	"context"
	"errors"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"gorm.io/gorm"
)

// PrincipalStore turns a verified credential claim into a principal,
// reading the role and active flag from the user row so deactivation
// takes effect before the token expires.
type PrincipalStore struct {
	db *gorm.DB
}

// NewPrincipalStore creates a store backed by the given database
func NewPrincipalStore(db *gorm.DB) *PrincipalStore {
	return &PrincipalStore{db: db}
}

// Load builds the principal for a user id
func (s *PrincipalStore) Load(ctx context.Context, userID uint) (rbac.Principal, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rbac.Principal{}, apperr.New(apperr.Unauthenticated, "unknown principal")
		}
		return rbac.Principal{}, apperr.Wrap(apperr.Internal, "failed to load principal", err)
	}
	return rbac.Principal{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Email:  user.Email,
		Role:   rbac.Role(user.Role),
		Active: user.Active,
	}, nil
}
