package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"go.uber.org/zap"
)

// EventPurchaseRequestUpdate is the notification event type emitted on
// approval and rejection.
const EventPurchaseRequestUpdate = "purchase_request_update"

// ListFilter narrows a purchase request listing
type ListFilter struct {
	Status      model.PurchaseRequestStatus
	RequesterID uint
	Offset      int
	Limit       int
}

// Store is the persistence contract for purchase requests. Transition
// and UpdateDraft commit the state change and its audit entry together
// or not at all, guarded by the version the caller read.
type Store interface {
	Get(ctx context.Context, orgID, id uint) (*model.PurchaseRequest, error)
	List(ctx context.Context, orgID uint, f ListFilter) ([]model.PurchaseRequest, error)
	Count(ctx context.Context, orgID uint) (int64, error)
	Create(ctx context.Context, pr *model.PurchaseRequest, entry audit.Entry) error
	UpdateDraft(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, items []model.PurchaseRequestItem, entry audit.Entry) error
	Transition(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, entry audit.Entry) error
	StaleDrafts(ctx context.Context, cutoff time.Time) ([]model.PurchaseRequest, error)
}

// RefChecker verifies that entities referenced by line items belong to
// the same organization as the request.
type RefChecker interface {
	CheckProduct(ctx context.Context, orgID, productID uint) error
	CheckSupplier(ctx context.Context, orgID, supplierID uint) error
}

// EventPublisher accepts workflow transition events for asynchronous
// downstream delivery. Emission is at-least-once; the dedup key lets
// consumers stay idempotent.
type EventPublisher interface {
	Publish(ctx context.Context, orgID uint, eventType, dedupKey string, data map[string]interface{}) error
}

// ItemInput is one requested line item
type ItemInput struct {
	ProductID      uint     `json:"product_id"`
	Quantity       int      `json:"quantity"`
	EstimatedPrice *float64 `json:"estimated_price,omitempty"`
	SupplierID     *uint    `json:"supplier_id,omitempty"`
}

// CreateInput carries the fields of a new draft request
type CreateInput struct {
	Notes string      `json:"notes"`
	Items []ItemInput `json:"items"`
}

// UpdateInput carries a draft edit. Nil Items leaves the lines unchanged.
type UpdateInput struct {
	Notes *string     `json:"notes,omitempty"`
	Items []ItemInput `json:"items,omitempty"`
}

// Engine is the purchase request workflow state machine. Every operation
// takes the resolved org id and the acting principal explicitly; the
// engine authorizes through the guard, validates the transition, and
// commits state change plus audit entry atomically through the store.
type Engine struct {
	store  Store
	refs   RefChecker
	guard  *rbac.Guard
	events EventPublisher
	now    func() time.Time
}

// NewEngine creates a workflow engine
func NewEngine(store Store, refs RefChecker, guard *rbac.Guard, events EventPublisher) *Engine {
	return &Engine{
		store:  store,
		refs:   refs,
		guard:  guard,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Get returns one request. Staff principals only see their own requests.
func (e *Engine) Get(ctx context.Context, orgID uint, p rbac.Principal, id uint) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.get", Entity: "PurchaseRequest", EntityID: audit.EntityID(id)}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleStaff, act); err != nil {
		return nil, err
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !p.System && p.Role == rbac.RoleStaff && pr.RequesterID != p.UserID {
		return nil, apperr.New(apperr.Forbidden, "access denied")
	}
	return pr, nil
}

// List returns the org's requests, narrowed to the principal's own
// requests for Staff.
func (e *Engine) List(ctx context.Context, orgID uint, p rbac.Principal, f ListFilter) ([]model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.list", Entity: "PurchaseRequest"}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleStaff, act); err != nil {
		return nil, err
	}
	if !p.System && p.Role == rbac.RoleStaff {
		f.RequesterID = p.UserID
	}
	return e.store.List(ctx, orgID, f)
}

// Create opens a new draft request owned by the acting principal
func (e *Engine) Create(ctx context.Context, orgID uint, p rbac.Principal, input CreateInput) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.create", Entity: "PurchaseRequest", Mutating: true}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleStaff, act); err != nil {
		return nil, err
	}
	if err := e.checkItems(ctx, orgID, input.Items); err != nil {
		return nil, err
	}

	count, err := e.store.Count(ctx, orgID)
	if err != nil {
		return nil, err
	}

	pr := &model.PurchaseRequest{
		Owned:         model.Owned{OrgID: orgID},
		RequestNumber: fmt.Sprintf("PR-%05d", count+1),
		Status:        model.StatusDraft,
		RequesterID:   p.UserID,
		Notes:         input.Notes,
		Version:       1,
		Items:         buildItems(input.Items),
	}

	entry := audit.Entry{
		OrgID:  orgID,
		Actor:  p.ActorID(),
		Action: "CREATE",
		Entity: "PurchaseRequest",
		After:  statusJSON(model.StatusDraft),
	}
	if err := e.store.Create(ctx, pr, entry); err != nil {
		return nil, err
	}
	return pr, nil
}

// Update edits a draft. Only the requester may edit, and only while the
// request is still in Draft; a submitted request must be rejected and
// recreated.
func (e *Engine) Update(ctx context.Context, orgID uint, p rbac.Principal, id uint, input UpdateInput) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.update", Entity: "PurchaseRequest", EntityID: audit.EntityID(id), Mutating: true}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleStaff, act); err != nil {
		return nil, err
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if pr.RequesterID != p.UserID {
		return nil, apperr.New(apperr.Forbidden, "only the requester may edit a request")
	}
	if pr.Status != model.StatusDraft {
		return nil, apperr.Newf(apperr.InvalidTransition, "only %s requests can be edited", model.StatusDraft)
	}
	if err := e.checkItems(ctx, orgID, input.Items); err != nil {
		return nil, err
	}

	fromVersion := pr.Version
	if input.Notes != nil {
		pr.Notes = *input.Notes
	}
	var items []model.PurchaseRequestItem
	if input.Items != nil {
		items = buildItems(input.Items)
	}

	entry := audit.Entry{
		OrgID:    orgID,
		Actor:    p.ActorID(),
		Action:   "UPDATE",
		Entity:   "PurchaseRequest",
		EntityID: audit.EntityID(pr.ID),
		Before:   statusJSON(model.StatusDraft),
		After:    statusJSON(model.StatusDraft),
	}
	if err := e.store.UpdateDraft(ctx, pr, fromVersion, items, entry); err != nil {
		return nil, err
	}
	return pr, nil
}

// Submit moves a draft to Submitted. The request must carry at least one
// line item with positive quantity.
func (e *Engine) Submit(ctx context.Context, orgID uint, p rbac.Principal, id uint) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.submit", Entity: "PurchaseRequest", EntityID: audit.EntityID(id), Mutating: true}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleStaff, act); err != nil {
		return nil, err
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if pr.RequesterID != p.UserID {
		return nil, apperr.New(apperr.Forbidden, "only the requester may submit a request")
	}
	if err := assertTransition(pr.Status, model.StatusSubmitted); err != nil {
		return nil, err
	}
	if !hasPositiveLine(pr.Items) {
		return nil, apperr.New(apperr.ValidationFailure, "request needs at least one line item with positive quantity")
	}

	fromVersion := pr.Version
	from := pr.Status
	now := e.now()
	pr.Status = model.StatusSubmitted
	pr.SubmittedAt = &now

	entry := e.transitionEntry(pr, p, "SUBMIT", from)
	if err := e.store.Transition(ctx, pr, fromVersion, entry); err != nil {
		return nil, err
	}
	return pr, nil
}

// Approve moves a submitted request to Approved. Requires Manager or
// above; self-approval is forbidden. One notification event is emitted
// per successful approval.
func (e *Engine) Approve(ctx context.Context, orgID uint, p rbac.Principal, id uint) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.approve", Entity: "PurchaseRequest", EntityID: audit.EntityID(id), Mutating: true}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleManager, act); err != nil {
		return nil, err
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !p.System && pr.RequesterID == p.UserID {
		return nil, apperr.New(apperr.Forbidden, "requests cannot be approved by their requester")
	}
	if err := assertTransition(pr.Status, model.StatusApproved); err != nil {
		return nil, err
	}

	fromVersion := pr.Version
	from := pr.Status
	now := e.now()
	pr.Status = model.StatusApproved
	pr.DecidedAt = &now
	if !p.System {
		approver := p.UserID
		pr.ApprovedBy = &approver
	}

	entry := e.transitionEntry(pr, p, "APPROVE", from)
	if err := e.store.Transition(ctx, pr, fromVersion, entry); err != nil {
		return nil, err
	}
	e.publishDecision(ctx, pr, p)
	return pr, nil
}

// Reject moves a submitted request to Rejected. Requires Manager or
// above and a non-empty reason. One notification event is emitted per
// successful rejection.
func (e *Engine) Reject(ctx context.Context, orgID uint, p rbac.Principal, id uint, reason string) (*model.PurchaseRequest, error) {
	act := rbac.Action{Name: "purchase_request.reject", Entity: "PurchaseRequest", EntityID: audit.EntityID(id), Mutating: true}
	if err := e.guard.Require(ctx, orgID, p, rbac.RoleManager, act); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.New(apperr.ValidationFailure, "rejection requires a non-empty reason")
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := assertTransition(pr.Status, model.StatusRejected); err != nil {
		return nil, err
	}

	fromVersion := pr.Version
	from := pr.Status
	now := e.now()
	pr.Status = model.StatusRejected
	pr.DecidedAt = &now
	pr.RejectionReason = reason
	if !p.System {
		rejecter := p.UserID
		pr.RejectedBy = &rejecter
	}

	entry := e.transitionEntry(pr, p, "REJECT", from)
	if err := e.store.Transition(ctx, pr, fromVersion, entry); err != nil {
		return nil, err
	}
	e.publishDecision(ctx, pr, p)
	return pr, nil
}

// Discard moves an aged draft to Discarded. This is the only transition
// not triggered by a user; it is reserved for the system principal and
// still audits through the same path.
func (e *Engine) Discard(ctx context.Context, orgID uint, p rbac.Principal, id uint) (*model.PurchaseRequest, error) {
	if !p.System {
		return nil, apperr.New(apperr.Forbidden, "only the system may discard requests")
	}
	pr, err := e.store.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := assertTransition(pr.Status, model.StatusDiscarded); err != nil {
		return nil, err
	}

	fromVersion := pr.Version
	from := pr.Status
	now := e.now()
	pr.Status = model.StatusDiscarded
	pr.DecidedAt = &now

	entry := e.transitionEntry(pr, p, "DISCARD", from)
	if err := e.store.Transition(ctx, pr, fromVersion, entry); err != nil {
		return nil, err
	}
	return pr, nil
}

// StaleDrafts returns drafts created before the cutoff, across all orgs.
// Consumed by the retention sweep.
func (e *Engine) StaleDrafts(ctx context.Context, cutoff time.Time) ([]model.PurchaseRequest, error) {
	return e.store.StaleDrafts(ctx, cutoff)
}

func (e *Engine) transitionEntry(pr *model.PurchaseRequest, p rbac.Principal, action string, from model.PurchaseRequestStatus) audit.Entry {
	return audit.Entry{
		OrgID:    pr.OrgID,
		Actor:    p.ActorID(),
		Action:   action,
		Entity:   "PurchaseRequest",
		EntityID: audit.EntityID(pr.ID),
		Before:   statusJSON(from),
		After:    statusJSON(pr.Status),
	}
}

// publishDecision emits the approval/rejection notification. Delivery is
// at-least-once and must not fail the already-committed transition.
func (e *Engine) publishDecision(ctx context.Context, pr *model.PurchaseRequest, p rbac.Principal) {
	if e.events == nil {
		return
	}
	dedupKey := fmt.Sprintf("pr-%d-%s", pr.ID, pr.Status)
	data := map[string]interface{}{
		"request_id":     pr.ID,
		"request_number": pr.RequestNumber,
		"status":         string(pr.Status),
		"actor":          p.ActorID(),
	}
	if err := e.events.Publish(ctx, pr.OrgID, EventPurchaseRequestUpdate, dedupKey, data); err != nil {
		logger.FromContext(ctx).Error("Failed to publish workflow event",
			zap.Uint("request_id", pr.ID),
			zap.String("status", string(pr.Status)),
			zap.Error(err))
	}
}

func (e *Engine) checkItems(ctx context.Context, orgID uint, items []ItemInput) error {
	for _, item := range items {
		if item.Quantity <= 0 {
			return apperr.New(apperr.ValidationFailure, "line item quantity must be positive")
		}
		if err := e.refs.CheckProduct(ctx, orgID, item.ProductID); err != nil {
			return err
		}
		if item.SupplierID != nil {
			if err := e.refs.CheckSupplier(ctx, orgID, *item.SupplierID); err != nil {
				return err
			}
		}
	}
	return nil
}

func buildItems(items []ItemInput) []model.PurchaseRequestItem {
	out := make([]model.PurchaseRequestItem, 0, len(items))
	for _, item := range items {
		out = append(out, model.PurchaseRequestItem{
			ProductID:      item.ProductID,
			Quantity:       item.Quantity,
			EstimatedPrice: item.EstimatedPrice,
			SupplierID:     item.SupplierID,
		})
	}
	return out
}

func hasPositiveLine(items []model.PurchaseRequestItem) bool {
	for _, item := range items {
		if item.Quantity > 0 {
			return true
		}
	}
	return false
}

func statusJSON(s model.PurchaseRequestStatus) string {
	return fmt.Sprintf("{\"status\":%q}", string(s))
}
