package handler

import (
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/internal/store"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// AuditHandler exposes read-only access to the org's audit trail.
// Queries require Admin; entries are never mutated through the API.
type AuditHandler struct {
	gate  *store.Gate
	guard *rbac.Guard
}

// NewAuditHandler creates the handler
func NewAuditHandler(gate *store.Gate, guard *rbac.Guard) *AuditHandler {
	return &AuditHandler{gate: gate, guard: guard}
}

// List returns the org's audit entries, newest first, with optional
// entity/actor/action/time filters
func (h *AuditHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "audit.list", Entity: "AuditLog"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleAdmin, act); err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	mods := []func(*gorm.DB) *gorm.DB{
		func(q *gorm.DB) *gorm.DB { return q.Offset(offset).Limit(limit).Order("created_at DESC") },
	}
	for param, column := range map[string]string{
		"entity":    "entity",
		"entity_id": "entity_id",
		"actor":     "actor",
		"action":    "action",
	} {
		if v := c.QueryParam(param); v != "" {
			col, val := column, v
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where(col+" = ?", val) })
		}
	}
	if v := c.QueryParam("since"); v != "" {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("created_at >= ?", since) })
		}
	}
	if v := c.QueryParam("until"); v != "" {
		if until, err := time.Parse(time.RFC3339, v); err == nil {
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("created_at <= ?", until) })
		}
	}

	var entries []model.AuditLog
	if err := h.gate.List(c.Request().Context(), orgID, &model.AuditLog{}, &entries, mods...); err != nil {
		return respondError(c, err)
	}
	return ok(c, entries)
}

// Get returns one audit entry
func (h *AuditHandler) Get(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "audit.get", Entity: "AuditLog", EntityID: audit.EntityID(id)}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleAdmin, act); err != nil {
		return respondError(c, err)
	}

	var entry model.AuditLog
	if err := h.gate.Get(c.Request().Context(), orgID, id, &entry); err != nil {
		return respondError(c, err)
	}
	return ok(c, entry)
}
