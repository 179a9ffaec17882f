package handler

import (
	"fmt"
	"strconv"
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

// ProductRequest defines the structure for product creation/update
// requests. Any client-supplied org id is ignored; the gate stamps the
// resolved tenant.
type ProductRequest struct {
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	MinStockLevel int    `json:"min_stock_level"`
	IsActive      bool   `json:"is_active"`
}

// ProductHandler exposes product master data CRUD
type ProductHandler struct {
	gate  *store.Gate
	guard *rbac.Guard
	audit audit.Recorder
}

// NewProductHandler creates the handler
func NewProductHandler(gate *store.Gate, guard *rbac.Guard, rec audit.Recorder) *ProductHandler {
	return &ProductHandler{gate: gate, guard: guard, audit: rec}
}

// List returns the org's products with optional filtering
func (h *ProductHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "product.list", Entity: "Product"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	mods := []func(*gorm.DB) *gorm.DB{
		func(q *gorm.DB) *gorm.DB { return q.Offset(offset).Limit(limit) },
	}
	if isActive := c.QueryParam("is_active"); isActive != "" {
		if active, err := strconv.ParseBool(isActive); err == nil {
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("is_active = ?", active) })
		}
	}
	if category := c.QueryParam("category"); category != "" {
		mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("category = ?", category) })
	}

	var products []model.Product
	if err := h.gate.List(c.Request().Context(), orgID, &model.Product{}, &products, mods...); err != nil {
		return respondError(c, err)
	}
	return ok(c, products)
}

// Get returns a single product by ID
func (h *ProductHandler) Get(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "product.get", Entity: "Product", EntityID: audit.EntityID(id)}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	var product model.Product
	if err := h.gate.Get(c.Request().Context(), orgID, id, &product); err != nil {
		return respondError(c, err)
	}
	return ok(c, product)
}

// Create creates a new product for the current tenant
func (h *ProductHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "product.create", Entity: "Product", Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}
	if req.SKU == "" || req.Name == "" {
		return respondError(c, apperr.New(apperr.ValidationFailure, "sku and name are required"))
	}

	// SKU is unique within the org
	var count int64
	h.gate.Scoped(c.Request().Context(), orgID, &model.Product{}).Where("sku = ?", req.SKU).Count(&count)
	if count > 0 {
		return respondError(c, apperr.New(apperr.ValidationFailure, "product with this SKU already exists"))
	}

	product := model.Product{
		SKU:           req.SKU,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		MinStockLevel: req.MinStockLevel,
		IsActive:      req.IsActive,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.gate.Create(c.Request().Context(), orgID, &product); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "CREATE", product.ID, "", productJSON(&product))
	log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.String("sku", product.SKU))
	return created(c, product)
}

// Update updates an existing product
func (h *ProductHandler) Update(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "product.update", Entity: "Product", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	var req ProductRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	var product model.Product
	if err := h.gate.Get(c.Request().Context(), orgID, id, &product); err != nil {
		return respondError(c, err)
	}
	before := productJSON(&product)

	if req.SKU != "" && req.SKU != product.SKU {
		var count int64
		h.gate.Scoped(c.Request().Context(), orgID, &model.Product{}).
			Where("sku = ? AND id != ?", req.SKU, id).Count(&count)
		if count > 0 {
			return respondError(c, apperr.New(apperr.ValidationFailure, "product with this SKU already exists"))
		}
		product.SKU = req.SKU
	}
	if req.Name != "" {
		product.Name = req.Name
	}
	product.Description = req.Description
	product.Category = req.Category
	product.MinStockLevel = req.MinStockLevel
	product.IsActive = req.IsActive

	defer prometheus.TrackDBOperation("update")(time.Now())
	if err := h.gate.Save(c.Request().Context(), orgID, &product); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "UPDATE", product.ID, before, productJSON(&product))
	return ok(c, product)
}

// Delete soft-deletes a product
func (h *ProductHandler) Delete(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "product.delete", Entity: "Product", EntityID: audit.EntityID(id), Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleManager, act); err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	if err := h.gate.Delete(c.Request().Context(), orgID, id, &model.Product{}); err != nil {
		return respondError(c, err)
	}

	h.recordAudit(c, orgID, principal, "DELETE", id, "", "")
	return ok(c, echo.Map{"message": "product deleted"})
}

func (h *ProductHandler) recordAudit(c echo.Context, orgID uint, p rbac.Principal, action string, id uint, before, after string) {
	if err := h.audit.Record(c.Request().Context(), audit.Entry{
		OrgID:     orgID,
		Actor:     p.ActorID(),
		Action:    action,
		Entity:    "Product",
		EntityID:  audit.EntityID(id),
		Before:    before,
		After:     after,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}); err != nil {
		logger.FromEcho(c).Error("Failed to record audit entry", zap.Error(err))
	}
}

func productJSON(p *model.Product) string {
	return fmt.Sprintf("{\"sku\":%q,\"name\":%q,\"min_stock_level\":%d,\"is_active\":%t}",
		p.SKU, p.Name, p.MinStockLevel, p.IsActive)
}
