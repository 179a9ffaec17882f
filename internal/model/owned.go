package model

// TenantOwned is implemented by every entity that belongs to exactly one
// organization. The tenant data gate only operates on TenantOwned values,
// so a new resource type cannot reach the store without declaring its
// owning-org column.
type TenantOwned interface {
	OwningOrg() uint
	SetOwningOrg(orgID uint)
}

// Owned carries the owning organization column. Embed it in every
// tenant-bearing model; the org id is set once at creation and never
// changed afterwards.
type Owned struct {
	OrgID uint `json:"org_id" gorm:"column:org_id;index;not null"`
}

// OwningOrg returns the owning organization id
func (o *Owned) OwningOrg() uint { return o.OrgID }

// SetOwningOrg sets the owning organization id
func (o *Owned) SetOwningOrg(orgID uint) { o.OrgID = orgID }
