package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/job"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/internal/store"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StockMovementRequest defines the structure for recording a movement
type StockMovementRequest struct {
	ProductID   uint   `json:"product_id"`
	WarehouseID uint   `json:"warehouse_id"`
	Type        string `json:"type"`
	Quantity    int    `json:"quantity"`
	Reference   string `json:"reference"`
	Notes       string `json:"notes"`
}

var movementTypes = map[model.MovementType]bool{
	model.MovementIn:          true,
	model.MovementOut:         true,
	model.MovementTransferIn:  true,
	model.MovementTransferOut: true,
	model.MovementAdjustment:  true,
}

// StockMovementHandler exposes the append-only movement log and the
// stock levels derived from it
type StockMovementHandler struct {
	gate     *store.Gate
	guard    *rbac.Guard
	audit    audit.Recorder
	stock    *store.StockStore
	lowStock *job.LowStockChecker
}

// NewStockMovementHandler creates the handler
func NewStockMovementHandler(gate *store.Gate, guard *rbac.Guard, rec audit.Recorder, stock *store.StockStore, lowStock *job.LowStockChecker) *StockMovementHandler {
	return &StockMovementHandler{gate: gate, guard: guard, audit: rec, stock: stock, lowStock: lowStock}
}

// List returns the org's movements, newest first
func (h *StockMovementHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "stock_movement.list", Entity: "StockMovement"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	mods := []func(*gorm.DB) *gorm.DB{
		func(q *gorm.DB) *gorm.DB { return q.Offset(offset).Limit(limit).Order("created_at DESC") },
	}
	if v := c.QueryParam("product_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("product_id = ?", uint(id)) })
		}
	}
	if v := c.QueryParam("warehouse_id"); v != "" {
		if id, err := strconv.ParseUint(v, 10, 32); err == nil {
			mods = append(mods, func(q *gorm.DB) *gorm.DB { return q.Where("warehouse_id = ?", uint(id)) })
		}
	}

	var movements []model.StockMovement
	if err := h.gate.List(c.Request().Context(), orgID, &model.StockMovement{}, &movements, mods...); err != nil {
		return respondError(c, err)
	}
	return ok(c, movements)
}

// Create appends one movement. Movements are never updated or deleted;
// corrections are recorded as ADJUSTMENT movements.
func (h *StockMovementHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "stock_movement.create", Entity: "StockMovement", Mutating: true}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	var req StockMovementRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}
	movementType := model.MovementType(req.Type)
	if !movementTypes[movementType] {
		return respondError(c, apperr.Newf(apperr.ValidationFailure, "unknown movement type %q", req.Type))
	}
	if req.Quantity <= 0 {
		return respondError(c, apperr.New(apperr.ValidationFailure, "quantity must be positive"))
	}

	ctx := c.Request().Context()
	var product model.Product
	if err := h.gate.Get(ctx, orgID, req.ProductID, &product); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return respondError(c, apperr.New(apperr.CrossTenantReference, "referenced entity does not belong to this organization"))
		}
		return respondError(c, err)
	}
	if err := h.gate.CheckRef(ctx, orgID, req.WarehouseID, &model.Warehouse{}); err != nil {
		return respondError(c, err)
	}

	movement := model.StockMovement{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Type:        movementType,
		Quantity:    req.Quantity,
		Reference:   req.Reference,
		Notes:       req.Notes,
		CreatedBy:   principal.UserID,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if err := h.gate.Create(ctx, orgID, &movement); err != nil {
		return respondError(c, err)
	}

	if err := h.audit.Record(ctx, audit.Entry{
		OrgID:     orgID,
		Actor:     principal.ActorID(),
		Action:    "CREATE",
		Entity:    "StockMovement",
		EntityID:  audit.EntityID(movement.ID),
		After:     movementJSON(&movement),
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}); err != nil {
		log.Error("Failed to record audit entry", zap.Error(err))
	}

	log.Info("Stock movement recorded",
		zap.Uint("movement_id", movement.ID),
		zap.Uint("product_id", movement.ProductID),
		zap.String("type", string(movement.Type)),
		zap.Int("quantity", movement.Quantity))

	// The movement has committed; the level check runs off the request
	// path against a detached context.
	if h.lowStock != nil {
		checkCtx := logger.WithContext(context.Background(), log)
		go h.lowStock.Check(checkCtx, orgID, &product)
	}

	return created(c, movement)
}

// Levels returns derived stock levels, optionally narrowed to one
// warehouse via the warehouse_id query parameter
func (h *StockMovementHandler) Levels(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "stock_movement.levels", Entity: "StockMovement"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	var warehouseID uint
	if v := c.QueryParam("warehouse_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return respondError(c, apperr.New(apperr.ValidationFailure, "invalid warehouse_id"))
		}
		warehouseID = uint(id)
	}

	levels, err := h.stock.Levels(c.Request().Context(), orgID, warehouseID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, levels)
}

// LowStock returns active products currently under their minimum level
func (h *StockMovementHandler) LowStock(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	act := rbac.Action{Name: "stock_movement.low_stock", Entity: "StockMovement"}
	if err := h.guard.Require(c.Request().Context(), orgID, principal, rbac.RoleStaff, act); err != nil {
		return respondError(c, err)
	}

	products, err := h.stock.BelowMinimum(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, products)
}

func movementJSON(m *model.StockMovement) string {
	return fmt.Sprintf("{\"product_id\":%d,\"warehouse_id\":%d,\"type\":%q,\"quantity\":%d}",
		m.ProductID, m.WarehouseID, m.Type, m.Quantity)
}
