package handler

import (
	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RejectRequest carries the rejection reason
type RejectRequest struct {
	Reason string `json:"reason"`
}

// PurchaseRequestHandler exposes the purchase request workflow
type PurchaseRequestHandler struct {
	engine *workflow.Engine
}

// NewPurchaseRequestHandler creates the handler
func NewPurchaseRequestHandler(engine *workflow.Engine) *PurchaseRequestHandler {
	return &PurchaseRequestHandler{engine: engine}
}

// List returns the org's purchase requests
func (h *PurchaseRequestHandler) List(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}

	offset, limit := pagination(c)
	filter := workflow.ListFilter{
		Status: model.PurchaseRequestStatus(c.QueryParam("status")),
		Offset: offset,
		Limit:  limit,
	}

	requests, err := h.engine.List(c.Request().Context(), orgID, principal, filter)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, requests)
}

// Get returns one purchase request
func (h *PurchaseRequestHandler) Get(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}

	pr, err := h.engine.Get(c.Request().Context(), orgID, principal, id)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, pr)
}

// Create opens a new draft request
func (h *PurchaseRequestHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}

	var input workflow.CreateInput
	if err := c.Bind(&input); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	pr, err := h.engine.Create(c.Request().Context(), orgID, principal, input)
	if err != nil {
		return respondError(c, err)
	}

	log.Info("Purchase request created",
		zap.Uint("request_id", pr.ID),
		zap.String("request_number", pr.RequestNumber))
	return created(c, pr)
}

// Update edits a draft request
func (h *PurchaseRequestHandler) Update(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var input workflow.UpdateInput
	if err := c.Bind(&input); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	pr, err := h.engine.Update(c.Request().Context(), orgID, principal, id, input)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, pr)
}

// Submit moves a draft to Submitted
func (h *PurchaseRequestHandler) Submit(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}

	pr, err := h.engine.Submit(c.Request().Context(), orgID, principal, id)
	if err != nil {
		return h.transitionError(c, err)
	}
	return h.transitioned(c, pr)
}

// Approve moves a submitted request to Approved
func (h *PurchaseRequestHandler) Approve(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}

	pr, err := h.engine.Approve(c.Request().Context(), orgID, principal, id)
	if err != nil {
		return h.transitionError(c, err)
	}
	return h.transitioned(c, pr)
}

// Reject moves a submitted request to Rejected
func (h *PurchaseRequestHandler) Reject(c echo.Context) error {
	orgID, principal, err := requestScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := idParam(c)
	if err != nil {
		return respondError(c, err)
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, apperr.New(apperr.ValidationFailure, "invalid request data"))
	}

	pr, err := h.engine.Reject(c.Request().Context(), orgID, principal, id, req.Reason)
	if err != nil {
		return h.transitionError(c, err)
	}
	return h.transitioned(c, pr)
}

func (h *PurchaseRequestHandler) transitionError(c echo.Context, err error) error {
	if apperr.IsKind(err, apperr.StaleState) {
		prometheus.WorkflowStaleStateCounter.Inc()
	}
	return respondError(c, err)
}

func (h *PurchaseRequestHandler) transitioned(c echo.Context, pr *model.PurchaseRequest) error {
	prometheus.WorkflowTransitionsCounter.WithLabelValues(string(pr.Status)).Inc()
	logger.FromEcho(c).Info("Purchase request transitioned",
		zap.Uint("request_id", pr.ID),
		zap.String("request_number", pr.RequestNumber),
		zap.String("status", string(pr.Status)))
	return ok(c, pr)
}
