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

// SupplierRequest defines the structure for supplier creation/update requests
type SupplierRequest struct {
	Name          string `json:"name"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Notes         string `json:"notes"`
	IsActive      bool   `json:"is_active"`
}

// SupplierHandler exposes supplier master data CRUD
type SupplierHandler struct {
	gate  *store.Gate
	guard *rbac.Guard
	audit audit.Recorder
}

// NewSupplierHandler creates the handler
func NewSupplierHandler(gate *store.Gate, guard *rbac.Guard, rec audit.Recorder) *SupplierHandler {
	return &SupplierHandler{gate: gate, guard: guard, audit: rec}
}

// List returns the org's suppliers
func (h *SupplierHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "supplier.list", Entity: "Supplier"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	mods := []func(*gorm.DB) *gorm.DB{
		func(q *gorm.DB) *gorm.DB { return q.Offset(offset).Limit(limit).Order("name ASC") },
	}
	if name := c.QueryParam("name"); name != "" {
		mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("name ILIKE ?", "%"+name+"%") })
	}

	var suppliers []model.Supplier
	if err := h.gate.List(c.Request().Context(), orgID, &model.Supplier{}, &suppliers, mods...); err != nil {
		return respondError(c, err)
	}
	return ok(c, suppliers)
}

// Get returns a single supplier by ID
func (h *SupplierHandler) Get(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "supplier.get", Entity: "Supplier", EntityID: audit.EntityID(id)}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	var supplier model.Supplier
	if err := h.gate.Get(c.Request().Context(), orgID, id, &supplier); err != nil {
		return respondError(c, err)
	}
	return ok(c, supplier)
}

// Create creates a new supplier for the current tenant
func (h *SupplierHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "supplier.create", Entity: "Supplier", Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}
	if req.Name == "" {
		return respondError(c, apperr.New(apperr.ValidationFailure, "name is required"))
	}

	supplier := model.Supplier{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Notes:         req.Notes,
		IsActive:      req.IsActive,
		CreatedBy:     principal.UserID,
		UpdatedBy:     principal.UserID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.gate.Create(c.Request().Context(), orgID, &supplier); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "CREATE", supplier.ID, "", supplierJSON(&supplier))
	log.Info("Supplier created",
		zap.Uint("supplier_id", supplier.ID),
		zap.String("name", supplier.Name))
	return created(c, supplier)
}

// Update updates an existing supplier
func (h *SupplierHandler) Update(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "supplier.update", Entity: "Supplier", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	var req SupplierRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	var supplier model.Supplier
	if err := h.gate.Get(c.Request().Context(), orgID, id, &supplier); err != nil {
		return respondError(c, err)
	}
	before := supplierJSON(&supplier)

	if req.Name != "" {
		supplier.Name = req.Name
	}
	supplier.ContactPerson = req.ContactPerson
	supplier.Email = req.Email
	supplier.Phone = req.Phone
	supplier.Address = req.Address
	supplier.Notes = req.Notes
	supplier.IsActive = req.IsActive
	supplier.UpdatedBy = principal.UserID

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.gate.Save(c.Request().Context(), orgID, &supplier); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "UPDATE", supplier.ID, before, supplierJSON(&supplier))
	return ok(c, supplier)
}

// Delete soft-deletes a supplier
func (h *SupplierHandler) Delete(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "supplier.delete", Entity: "Supplier", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.gate.Delete(c.Request().Context(), orgID, id, &model.Supplier{}); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "DELETE", id, "", "")
	return ok(c, echo.Map{"message": "supplier deleted"})
}

func (h *SupplierHandler) recordAudit(c echo.Context, orgID uint, p rbac.Principal, action string, id uint, before, after string) {
	if err := h.audit.Record(c.Request().Context(), audit.Entry{
		OrgID:     orgID,
		Actor:     p.ActorID(),
		Action:    action,
		Entity:    "Supplier",
		EntityID:  audit.EntityID(id),
		Before:    before,
		After:     after,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}); err != nil {
		logger.FromEcho(c).Error("Failed to record audit entry", zap.Error(err))
	}
}

func supplierJSON(s *model.Supplier) string {
	return fmt.Sprintf("{\"name\":%q,\"email\":%q,\"is_active\":%t}", s.Name, s.Email, s.IsActive)
}
