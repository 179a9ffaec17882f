package store

import (
	"context"

	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
)

// GateRefChecker verifies line item references through the tenant gate
type GateRefChecker struct {
	gate *Gate
}

var _ workflow.RefChecker = (*GateRefChecker)(nil)

// NewGateRefChecker creates a checker over the given gate
func NewGateRefChecker(gate *Gate) *GateRefChecker {
	return &GateRefChecker{gate: gate}
}

// CheckProduct verifies the product belongs to the org
func (c *GateRefChecker) CheckProduct(ctx context.Context, orgID, productID uint) error {
	return c.gate.CheckRef(ctx, orgID, productID, &model.Product{})
}

// CheckSupplier verifies the supplier belongs to the org
func (c *GateRefChecker) CheckSupplier(ctx context.Context, orgID, supplierID uint) error {
	return c.gate.CheckRef(ctx, orgID, supplierID, &model.Supplier{})
}
