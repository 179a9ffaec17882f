package store

import (
	"context"
	"errors"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"gorm.io/gorm"
)

// Compile-time checks that every tenant-bearing model registers its
// owning-org column with the gate.
var (
	_ model.TenantOwned = (*model.User)(nil)
	_ model.TenantOwned = (*model.Product)(nil)
	_ model.TenantOwned = (*model.Supplier)(nil)
	_ model.TenantOwned = (*model.Warehouse)(nil)
	_ model.TenantOwned = (*model.StockMovement)(nil)
	_ model.TenantOwned = (*model.PurchaseRequest)(nil)
	_ model.TenantOwned = (*model.AuditLog)(nil)
)

// Gate wraps every read and write of a tenant-owned entity with a
// mandatory org-equality check. The resolved org id is an explicit
// argument on every access; there is no ambient tenant state to forget.
type Gate struct {
	db *gorm.DB
}

// NewGate creates a gate over the given database
func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

// Scoped returns a query over the entity type filtered to the org
func (g *Gate) Scoped(ctx context.Context, orgID uint, entity model.TenantOwned) *gorm.DB {
	return g.db.WithContext(ctx).Model(entity).Where("org_id = ?", orgID)
}

// Get loads the entity by id within the org. A cross-tenant id returns
// NotFound, indistinguishable from an absent row.
func (g *Gate) Get(ctx context.Context, orgID uint, id uint, out model.TenantOwned) error {
	err := g.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.NotFound, "resource not found")
		}
		return apperr.Wrap(apperr.Internal, "failed to load resource", err)
	}
	return nil
}

// List loads all rows of the entity type belonging to the org into dest.
// mods append further filters (status, pagination) to the scoped query.
func (g *Gate) List(ctx context.Context, orgID uint, entity model.TenantOwned, dest interface{}, mods ...func(*gorm.DB) *gorm.DB) error {
	q := g.Scoped(ctx, orgID, entity)
	for _, mod := range mods {
		q = mod(q)
	}
	if err := q.Find(dest).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to list resources", err)
	}
	return nil
}

// Create persists the entity with its org id forcibly set to the
// resolved tenant. Any client-supplied org id is overwritten.
func (g *Gate) Create(ctx context.Context, orgID uint, entity model.TenantOwned) error {
	entity.SetOwningOrg(orgID)
	if err := g.db.WithContext(ctx).Create(entity).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to create resource", err)
	}
	return nil
}

// Save persists changes to an entity previously loaded through the gate.
// The org id is re-asserted before the write; it is immutable.
func (g *Gate) Save(ctx context.Context, orgID uint, entity model.TenantOwned) error {
	entity.SetOwningOrg(orgID)
	if err := g.db.WithContext(ctx).Save(entity).Error; err != nil {
		return apperr.Wrap(apperr.Internal, "failed to save resource", err)
	}
	return nil
}

// Delete removes the entity by id within the org. A cross-tenant id
// deletes nothing and reports NotFound.
func (g *Gate) Delete(ctx context.Context, orgID uint, id uint, entity model.TenantOwned) error {
	res := g.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).Delete(entity)
	if res.Error != nil {
		return apperr.Wrap(apperr.Internal, "failed to delete resource", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "resource not found")
	}
	return nil
}

// CheckRef verifies that a referenced entity belongs to the org. Used on
// writes that point at other entities (e.g. a purchase request line
// referencing a product).
func (g *Gate) CheckRef(ctx context.Context, orgID uint, id uint, entity model.TenantOwned) error {
	var count int64
	err := g.db.WithContext(ctx).Model(entity).Where("id = ? AND org_id = ?", id, orgID).Count(&count).Error
	if err != nil {
		return apperr.Wrap(apperr.Internal, "failed to check reference", err)
	}
	if count == 0 {
		return apperr.New(apperr.CrossTenantReference, "referenced entity does not belong to this organization")
	}
	return nil
}
