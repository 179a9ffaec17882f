package job

import (
	"context"
	"fmt"

	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/store"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"go.uber.org/zap"
)

// EventLowStock is the notification event type emitted when a product
// drops under its minimum stock level.
const EventLowStock = "low_stock"

// LowStockChecker re-derives a product's on-hand level after a movement
// and notifies the org when it falls under the configured minimum.
type LowStockChecker struct {
	stock  *store.StockStore
	events workflow.EventPublisher
}

// NewLowStockChecker creates a checker
func NewLowStockChecker(stock *store.StockStore, events workflow.EventPublisher) *LowStockChecker {
	return &LowStockChecker{stock: stock, events: events}
}

// Check evaluates one product. Errors are logged, not returned; the
// movement that triggered the check has already committed.
func (l *LowStockChecker) Check(ctx context.Context, orgID uint, product *model.Product) {
	log := logger.FromContext(ctx)
	if product.MinStockLevel <= 0 || !product.IsActive {
		return
	}

	level, err := l.stock.ProductLevel(ctx, orgID, product.ID)
	if err != nil {
		log.Error("Low stock check failed",
			zap.Uint("product_id", product.ID),
			zap.Error(err))
		return
	}
	if level >= product.MinStockLevel {
		return
	}

	log.Warn("Product below minimum stock level",
		zap.Uint("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("level", level),
		zap.Int("min_stock_level", product.MinStockLevel))

	if l.events == nil {
		return
	}
	dedupKey := fmt.Sprintf("lowstock-%d-%d", product.ID, level)
	data := map[string]interface{}{
		"product_id":      product.ID,
		"sku":             product.SKU,
		"name":            product.Name,
		"level":           level,
		"min_stock_level": product.MinStockLevel,
	}
	if err := l.events.Publish(ctx, orgID, EventLowStock, dedupKey, data); err != nil {
		log.Error("Failed to publish low stock event",
			zap.Uint("product_id", product.ID),
			zap.Error(err))
	}
}
