package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/model"
	"gorm.io/gorm"
)

// SystemActor is the distinguished actor recorded for transitions not
// triggered by a user, such as the retention sweep.
const SystemActor = "system"

// Entry is one immutable audit record. Entries are emitted once per
// permission decision and once per state transition, never mutated.
type Entry struct {
	OrgID     uint
	Actor     string
	Action    string
	Entity    string
	EntityID  string
	Before    string
	After     string
	IPAddress string
	UserAgent string
}

// Recorder accepts audit entries for durable, append-only storage
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// ActorID renders a user id as an audit actor string
func ActorID(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// EntityID renders a numeric entity id as an audit target string
func EntityID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Row converts an entry to its storage model. Used by stores that must
// write the entry inside the same transaction as a state change.
func Row(e Entry) model.AuditLog {
	return model.AuditLog{
		Owned:     model.Owned{OrgID: e.OrgID},
		Actor:     e.Actor,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Before:    e.Before,
		After:     e.After,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
}

// GormRecorder writes audit entries to the relational store
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder creates a recorder backed by the given database
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Record inserts one audit row
func (r *GormRecorder) Record(ctx context.Context, e Entry) error {
	row := Row(e)
	return r.db.WithContext(ctx).Create(&row).Error
}
