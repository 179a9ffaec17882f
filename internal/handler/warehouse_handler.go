package handler

import (
	"fmt"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/internal/store"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WarehouseRequest defines the structure for warehouse creation/update requests
type WarehouseRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

// WarehouseHandler exposes warehouse CRUD
type WarehouseHandler struct {
	gate  *store.Gate
	guard *rbac.Guard
	audit audit.Recorder
}

// NewWarehouseHandler creates the handler
func NewWarehouseHandler(gate *store.Gate, guard *rbac.Guard, rec audit.Recorder) *WarehouseHandler {
	return &WarehouseHandler{gate: gate, guard: guard, audit: rec}
}

// List returns the org's warehouses
func (h *WarehouseHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "warehouse.list", Entity: "Warehouse"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	var warehouses []model.Warehouse
	err = h.gate.List(c.Request().Context(), orgID, &model.Warehouse{}, &warehouses,
		func(q *gorm.DB) *gorm.DB { return q.Offset(offset).Limit(limit).Order("name ASC") })
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, warehouses)
}

// Get returns a single warehouse by ID
func (h *WarehouseHandler) Get(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "warehouse.get", Entity: "Warehouse", EntityID: audit.EntityID(id)}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	var warehouse model.Warehouse
	if err := h.gate.Get(c.Request().Context(), orgID, id, &warehouse); err != nil {
		return respondError(c, err)
	}
	return ok(c, warehouse)
}

// Create creates a new warehouse for the current tenant
func (h *WarehouseHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "warehouse.create", Entity: "Warehouse", Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleAdmin, act); err != nil {
		return respondError(c, err)
	}

	var req WarehouseRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}
	if req.Name == "" || req.Location == "" {
		return respondError(c, apperr.New(apperr.ValidationFailure, "name and location are required"))
	}

	warehouse := model.Warehouse{
		Name:     req.Name,
		Location: req.Location,
		Capacity: req.Capacity,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.gate.Create(c.Request().Context(), orgID, &warehouse); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "CREATE", warehouse.ID, "", warehouseJSON(&warehouse))
	log.Info("Warehouse created",
		zap.Uint("warehouse_id", warehouse.ID),
		zap.String("name", warehouse.Name))
	return created(c, warehouse)
}

// Update updates an existing warehouse
func (h *WarehouseHandler) Update(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "warehouse.update", Entity: "Warehouse", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleAdmin, act); err != nil {
		return respondError(c, err)
	}

	var req WarehouseRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	var warehouse model.Warehouse
	if err := h.gate.Get(c.Request().Context(), orgID, id, &warehouse); err != nil {
		return respondError(c, err)
	}
	before := warehouseJSON(&warehouse)

	if req.Name != "" {
		warehouse.Name = req.Name
	}
	if req.Location != "" {
		warehouse.Location = req.Location
	}
	warehouse.Capacity = req.Capacity

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.gate.Save(c.Request().Context(), orgID, &warehouse); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "UPDATE", warehouse.ID, before, warehouseJSON(&warehouse))
	return ok(c, warehouse)
}

// Delete soft-deletes a warehouse
func (h *WarehouseHandler) Delete(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "warehouse.delete", Entity: "Warehouse", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleAdmin, act); err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.gate.Delete(c.Request().Context(), orgID, id, &model.Warehouse{}); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "DELETE", id, "", "")
	return ok(c, echo.Map{"message": "warehouse deleted"})
}

func (h *WarehouseHandler) recordAudit(c echo.Context, orgID uint, p rbac.Principal, action string, id uint, before, after string) {
	if err := h.audit.Record(c.Request().Context(), audit.Entry{
		OrgID:     orgID,
		Actor:     p.ActorID(),
		Action:    action,
		Entity:    "Warehouse",
		EntityID:  audit.EntityID(id),
		Before:    before,
		After:     after,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}); err != nil {
		logger.FromEcho(c).Error("Failed to record audit entry", zap.Error(err))
	}
}

func warehouseJSON(w *model.Warehouse) string {
	return fmt.Sprintf("{\"name\":%q,\"location\":%q,\"capacity\":%d}", w.Name, w.Location, w.Capacity)
}
