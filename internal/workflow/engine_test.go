package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/Creedyfish/multitenant-backend/internal/model"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with the same version-compare semantics
// as the relational implementation.
type memStore struct {
	nextID  uint
	rows    map[uint]*model.PurchaseRequest
	entries []audit.Entry
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, rows: map[uint]*model.PurchaseRequest{}}
}

func (s *memStore) Get(ctx context.Context, orgID, id uint) (*model.PurchaseRequest, error) {
	pr, ok := s.rows[id]
	if !ok || pr.OrgID != orgID {
		return nil, apperr.New(apperr.NotFound, "resource not found")
	}
	cp := *pr
	cp.Items = append([]model.PurchaseRequestItem(nil), pr.Items...)
	return &cp, nil
}

func (s *memStore) List(ctx context.Context, orgID uint, f ListFilter) ([]model.PurchaseRequest, error) {
	var out []model.PurchaseRequest
	for _, pr := range s.rows {
		if pr.OrgID != orgID {
			continue
		}
		if f.Status != "" && pr.Status != f.Status {
			continue
		}
		if f.RequesterID != 0 && pr.RequesterID != f.RequesterID {
			continue
		}
		out = append(out, *pr)
	}
	return out, nil
}

func (s *memStore) Count(ctx context.Context, orgID uint) (int64, error) {
	var n int64
	for _, pr := range s.rows {
		if pr.OrgID == orgID {
			n++
		}
	}
	return n, nil
}

func (s *memStore) Create(ctx context.Context, pr *model.PurchaseRequest, entry audit.Entry) error {
	pr.ID = s.nextID
	s.nextID++
	cp := *pr
	s.rows[pr.ID] = &cp
	entry.EntityID = audit.EntityID(pr.ID)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) UpdateDraft(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, items []model.PurchaseRequestItem, entry audit.Entry) error {
	stored, ok := s.rows[pr.ID]
	if !ok {
		return apperr.New(apperr.NotFound, "resource not found")
	}
	if stored.Version != fromVersion {
		return apperr.New(apperr.StaleState, "request was modified concurrently")
	}
	stored.Notes = pr.Notes
	if items != nil {
		stored.Items = items
	}
	stored.Version++
	pr.Version = stored.Version
	pr.Items = stored.Items
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) Transition(ctx context.Context, pr *model.PurchaseRequest, fromVersion uint64, entry audit.Entry) error {
	stored, ok := s.rows[pr.ID]
	if !ok {
		return apperr.New(apperr.NotFound, "resource not found")
	}
	if stored.Version != fromVersion {
		return apperr.New(apperr.StaleState, "request was modified concurrently")
	}
	stored.Status = pr.Status
	stored.ApprovedBy = pr.ApprovedBy
	stored.RejectedBy = pr.RejectedBy
	stored.RejectionReason = pr.RejectionReason
	stored.SubmittedAt = pr.SubmittedAt
	stored.DecidedAt = pr.DecidedAt
	stored.Version++
	pr.Version = stored.Version
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memStore) StaleDrafts(ctx context.Context, cutoff time.Time) ([]model.PurchaseRequest, error) {
	var out []model.PurchaseRequest
	for _, pr := range s.rows {
		if pr.Status == model.StatusDraft && pr.CreatedAt.Before(cutoff) {
			out = append(out, *pr)
		}
	}
	return out, nil
}

type allowAllRefs struct{}

func (allowAllRefs) CheckProduct(ctx context.Context, orgID, productID uint) error {
	return nil
}

func (allowAllRefs) CheckSupplier(ctx context.Context, orgID, supplierID uint) error {
	return nil
}

type denyRefs struct{}

func (denyRefs) CheckProduct(ctx context.Context, orgID, productID uint) error {
	return apperr.New(apperr.CrossTenantReference, "referenced entity does not belong to this organization")
}
func (denyRefs) CheckSupplier(ctx context.Context, orgID, supplierID uint) error { return nil }

type memRecorder struct {
	entries []audit.Entry
}

func (r *memRecorder) Record(ctx context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

type publishedEvent struct {
	orgID     uint
	eventType string
	dedupKey  string
	data      map[string]interface{}
}

type memPublisher struct {
	events []publishedEvent
}

func (p *memPublisher) Publish(ctx context.Context, orgID uint, eventType, dedupKey string, data map[string]interface{}) error {
	p.events = append(p.events, publishedEvent{orgID, eventType, dedupKey, data})
	return nil
}

func testEngine() (*Engine, *memStore, *memRecorder, *memPublisher) {
	store := newMemStore()
	rec := &memRecorder{}
	events := &memPublisher{}
	engine := NewEngine(store, allowAllRefs{}, &rbac.Guard{Audit: rec}, events)
	return engine, store, rec, events
}

func staffPrincipal(userID, orgID uint) rbac.Principal {
	return rbac.Principal{UserID: userID, OrgID: orgID, Role: rbac.RoleStaff, Active: true}
}

func managerPrincipal(userID, orgID uint) rbac.Principal {
	return rbac.Principal{UserID: userID, OrgID: orgID, Role: rbac.RoleManager, Active: true}
}

func draftInput() CreateInput {
	return CreateInput{
		Notes: "restock",
		Items: []ItemInput{{ProductID: 7, Quantity: 3}},
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	first, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	second, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)

	assert.Equal(t, "PR-00001", first.RequestNumber)
	assert.Equal(t, "PR-00002", second.RequestNumber)
	assert.Equal(t, model.StatusDraft, first.Status)
	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint(1), first.RequesterID)
}

func TestCreateRejectsCrossTenantProduct(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, denyRefs{}, &rbac.Guard{}, nil)

	_, err := engine.Create(context.Background(), 10, staffPrincipal(1, 10), draftInput())
	assert.True(t, apperr.IsKind(err, apperr.CrossTenantReference))
}

func TestSubmitApproveRoundTrip(t *testing.T) {
	engine, store, _, events := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)
	manager := managerPrincipal(2, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)

	pr, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, pr.Status)
	require.NotNil(t, pr.SubmittedAt)

	pr, err = engine.Approve(ctx, 10, manager, pr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, pr.Status)
	require.NotNil(t, pr.ApprovedBy)
	assert.Equal(t, uint(2), *pr.ApprovedBy)
	assert.True(t, pr.Status.Terminal())

	// One audit entry per state change, nothing more.
	require.Len(t, store.entries, 3)
	assert.Equal(t, "CREATE", store.entries[0].Action)
	assert.Equal(t, "SUBMIT", store.entries[1].Action)
	assert.Equal(t, "APPROVE", store.entries[2].Action)

	// Exactly one decision event with a stable dedup key.
	require.Len(t, events.events, 1)
	assert.Equal(t, EventPurchaseRequestUpdate, events.events[0].eventType)
	assert.Equal(t, fmt.Sprintf("pr-%d-APPROVED", pr.ID), events.events[0].dedupKey)
	assert.Equal(t, uint(10), events.events[0].orgID)
}

func TestSubmitRequiresPositiveLineItem(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, CreateInput{Notes: "empty"})
	require.NoError(t, err)

	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailure))
}

func TestSubmitOnlyByRequester(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()

	pr, err := engine.Create(ctx, 10, staffPrincipal(1, 10), draftInput())
	require.NoError(t, err)

	_, err = engine.Submit(ctx, 10, staffPrincipal(2, 10), pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestSubmitTwiceIsInvalidTransition(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))
}

func TestApproveRequiresManager(t *testing.T) {
	engine, _, rec, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	_, err = engine.Approve(ctx, 10, staffPrincipal(2, 10), pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	// The denied mutating attempt is audited by the guard.
	var denies int
	for _, e := range rec.entries {
		if e.Action == "DENY:purchase_request.approve" {
			denies++
		}
	}
	assert.Equal(t, 1, denies)
}

func TestSelfApprovalForbidden(t *testing.T) {
	engine, _, _, events := testEngine()
	ctx := context.Background()
	manager := managerPrincipal(5, 10)

	pr, err := engine.Create(ctx, 10, manager, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, manager, pr.ID)
	require.NoError(t, err)

	_, err = engine.Approve(ctx, 10, manager, pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
	assert.Empty(t, events.events)
}

func TestRejectRequiresReason(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)
	manager := managerPrincipal(2, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	_, err = engine.Reject(ctx, 10, manager, pr.ID, "   ")
	assert.True(t, apperr.IsKind(err, apperr.ValidationFailure))

	pr, err = engine.Reject(ctx, 10, manager, pr.ID, "over budget")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, pr.Status)
	assert.Equal(t, "over budget", pr.RejectionReason)
	require.NotNil(t, pr.RejectedBy)
	assert.Equal(t, uint(2), *pr.RejectedBy)
}

func TestConcurrentApprovalOneWins(t *testing.T) {
	engine, store, _, events := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	// Both managers read the submitted version. The first write wins; the
	// second, still carrying the version it read, loses to the guard.
	loser, err := store.Get(ctx, 10, pr.ID)
	require.NoError(t, err)

	_, err = engine.Approve(ctx, 10, managerPrincipal(2, 10), pr.ID)
	require.NoError(t, err)

	loser.Status = model.StatusApproved
	err = store.Transition(ctx, loser, loser.Version, audit.Entry{})
	assert.True(t, apperr.IsKind(err, apperr.StaleState))

	assert.Equal(t, model.StatusApproved, store.rows[pr.ID].Status)
	assert.Len(t, events.events, 1)
}

func TestStaffSeesOnlyOwnRequests(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	alice := staffPrincipal(1, 10)
	bob := staffPrincipal(2, 10)

	mine, err := engine.Create(ctx, 10, alice, draftInput())
	require.NoError(t, err)
	_, err = engine.Create(ctx, 10, bob, draftInput())
	require.NoError(t, err)

	listed, err := engine.List(ctx, 10, alice, ListFilter{})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, mine.ID, listed[0].ID)

	_, err = engine.Get(ctx, 10, alice, mine.ID)
	assert.NoError(t, err)

	theirs, err := engine.List(ctx, 10, bob, ListFilter{})
	require.NoError(t, err)
	_, err = engine.Get(ctx, 10, alice, theirs[0].ID)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
}

func TestManagerSeesAllOrgRequests(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()

	_, err := engine.Create(ctx, 10, staffPrincipal(1, 10), draftInput())
	require.NoError(t, err)
	_, err = engine.Create(ctx, 10, staffPrincipal(2, 10), draftInput())
	require.NoError(t, err)

	listed, err := engine.List(ctx, 10, managerPrincipal(3, 10), ListFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCrossOrgRequestInvisible(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()

	pr, err := engine.Create(ctx, 10, staffPrincipal(1, 10), draftInput())
	require.NoError(t, err)

	_, err = engine.Get(ctx, 20, staffPrincipal(9, 20), pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestUpdateOnlyInDraft(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)

	notes := "updated notes"
	updated, err := engine.Update(ctx, 10, staff, pr.ID, UpdateInput{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "updated notes", updated.Notes)
	assert.Equal(t, uint64(2), updated.Version)

	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	_, err = engine.Update(ctx, 10, staff, pr.ID, UpdateInput{Notes: &notes})
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))
}

func TestDiscardReservedForSystem(t *testing.T) {
	engine, store, _, events := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)

	_, err = engine.Discard(ctx, 10, managerPrincipal(2, 10), pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))

	discarded, err := engine.Discard(ctx, 10, rbac.SystemPrincipal(), pr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDiscarded, discarded.Status)
	assert.Equal(t, audit.SystemActor, store.entries[len(store.entries)-1].Actor)
	// Discards notify nobody.
	assert.Empty(t, events.events)
}

func TestDiscardOnlyFromDraft(t *testing.T) {
	engine, _, _, _ := testEngine()
	ctx := context.Background()
	staff := staffPrincipal(1, 10)

	pr, err := engine.Create(ctx, 10, staff, draftInput())
	require.NoError(t, err)
	_, err = engine.Submit(ctx, 10, staff, pr.ID)
	require.NoError(t, err)

	_, err = engine.Discard(ctx, 10, rbac.SystemPrincipal(), pr.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))
}

func TestStaleDraftsFiltersByCutoff(t *testing.T) {
	engine, store, _, _ := testEngine()
	ctx := context.Background()

	old, err := engine.Create(ctx, 10, staffPrincipal(1, 10), draftInput())
	require.NoError(t, err)
	store.rows[old.ID].CreatedAt = time.Now().UTC().Add(-40 * 24 * time.Hour)

	fresh, err := engine.Create(ctx, 10, staffPrincipal(1, 10), draftInput())
	require.NoError(t, err)
	store.rows[fresh.ID].CreatedAt = time.Now().UTC()

	stale, err := engine.StaleDrafts(ctx, time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestTransitionTable(t *testing.T) {
	legal := []struct {
		from, to model.PurchaseRequestStatus
	}{
		{model.StatusDraft, model.StatusSubmitted},
		{model.StatusDraft, model.StatusDiscarded},
		{model.StatusSubmitted, model.StatusApproved},
		{model.StatusSubmitted, model.StatusRejected},
	}
	for _, tc := range legal {
		assert.NoError(t, assertTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	illegal := []struct {
		from, to model.PurchaseRequestStatus
	}{
		{model.StatusDraft, model.StatusApproved},
		{model.StatusDraft, model.StatusRejected},
		{model.StatusSubmitted, model.StatusDraft},
		{model.StatusSubmitted, model.StatusDiscarded},
		{model.StatusApproved, model.StatusRejected},
		{model.StatusApproved, model.StatusDraft},
		{model.StatusRejected, model.StatusSubmitted},
		{model.StatusDiscarded, model.StatusSubmitted},
	}
	for _, tc := range illegal {
		err := assertTransition(tc.from, tc.to)
		assert.True(t, apperr.IsKind(err, apperr.InvalidTransition), "%s -> %s", tc.from, tc.to)
	}
}
