package store

import (
	"context"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
)

// StockLevel is the derived on-hand quantity for one product, optionally
// per warehouse
type StockLevel struct {
	ProductID   uint `json:"product_id"`
	WarehouseID uint `json:"warehouse_id,omitempty"`
	Quantity    int  `json:"quantity"`
}

// signedQuantityExpr folds the movement type into the quantity sign so
// levels aggregate with a single SUM.
const signedQuantityExpr = "CASE WHEN type IN ('OUT','TRANSFER_OUT') THEN -quantity ELSE quantity END"

// StockStore derives stock levels from the append-only movement log
type StockStore struct {
	gate *Gate
}

// NewStockStore creates a stock store over the gate
func NewStockStore(gate *Gate) *StockStore {
	return &StockStore{gate: gate}
}

// ProductLevel returns the org-wide on-hand quantity for one product
func (s *StockStore) ProductLevel(ctx context.Context, orgID, productID uint) (int, error) {
	var level int
	err := s.gate.Scoped(ctx, orgID, &model.StockMovement{}).
		Select("COALESCE(SUM(" + signedQuantityExpr + "), 0)").
		Where("product_id = ?", productID).
		Scan(&level).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "failed to aggregate stock level", err)
	}
	return level, nil
}

// Levels returns per-product, per-warehouse levels for the org. A zero
// warehouseID aggregates across all warehouses.
func (s *StockStore) Levels(ctx context.Context, orgID, warehouseID uint) ([]StockLevel, error) {
	q := s.gate.Scoped(ctx, orgID, &model.StockMovement{})
	if warehouseID != 0 {
		q = q.Where("warehouse_id = ?", warehouseID).
			Select("product_id, warehouse_id, COALESCE(SUM("+signedQuantityExpr+"), 0) AS quantity").
			Group("product_id, warehouse_id")
	} else {
		q = q.Select("product_id, COALESCE(SUM(" + signedQuantityExpr + "), 0) AS quantity").
			Group("product_id")
	}

	var levels []StockLevel
	if err := q.Order("product_id ASC").Scan(&levels).Error; err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to aggregate stock levels", err)
	}
	return levels, nil
}

// BelowMinimum returns active products whose org-wide level is under
// their configured minimum
func (s *StockStore) BelowMinimum(ctx context.Context, orgID uint) ([]model.Product, error) {
	var products []model.Product
	err := s.gate.Scoped(ctx, orgID, &model.Product{}).
		Where("is_active = ? AND min_stock_level > 0", true).
		Find(&products).Error
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to load products", err)
	}

	low := products[:0]
	for _, p := range products {
		level, err := s.ProductLevel(ctx, orgID, p.ID)
		if err != nil {
			return nil, err
		}
		if level < p.MinStockLevel {
			low = append(low, p)
		}
	}
	return low, nil
}
