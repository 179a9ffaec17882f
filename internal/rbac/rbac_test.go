package rbac

import (
	"context"
	"testing"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	entries []audit.Entry
}

func (r *memRecorder) Record(ctx context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestRoleHierarchyIsMonotonic(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleStaff))
	assert.True(t, RoleAdmin.AtLeast(RoleManager))
	assert.True(t, RoleAdmin.AtLeast(RoleAdmin))
	assert.True(t, RoleManager.AtLeast(RoleStaff))
	assert.True(t, RoleManager.AtLeast(RoleManager))
	assert.True(t, RoleStaff.AtLeast(RoleStaff))

	assert.False(t, RoleStaff.AtLeast(RoleManager))
	assert.False(t, RoleStaff.AtLeast(RoleAdmin))
	assert.False(t, RoleManager.AtLeast(RoleAdmin))
}

func TestParseRole(t *testing.T) {
	for raw, want := range map[string]Role{
		"ADMIN":   RoleAdmin,
		"manager": RoleManager,
		" staff ": RoleStaff,
		"Manager": RoleManager,
	} {
		got, err := ParseRole(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseRole("superuser")
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	staff := Principal{UserID: 1, OrgID: 1, Role: RoleStaff, Active: true}
	assert.NoError(t, Authorize(staff, RoleStaff))
	assert.True(t, apperr.IsKind(Authorize(staff, RoleManager), apperr.Forbidden))

	admin := Principal{UserID: 2, OrgID: 1, Role: RoleAdmin, Active: true}
	assert.NoError(t, Authorize(admin, RoleManager))
	assert.NoError(t, Authorize(admin, RoleAdmin))
}

func TestAuthorizeDeniesInactivePrincipal(t *testing.T) {
	// Deactivation overrides role entirely.
	admin := Principal{UserID: 2, OrgID: 1, Role: RoleAdmin, Active: false}
	err := Authorize(admin, RoleStaff)
	assert.True(t, apperr.IsKind(err, apperr.Forbidden))
	assert.Contains(t, apperr.ReasonOf(err), "deactivated")
}

func TestSystemPrincipalBypassesRoleCheck(t *testing.T) {
	assert.NoError(t, Authorize(SystemPrincipal(), RoleAdmin))
	assert.Equal(t, audit.SystemActor, SystemPrincipal().ActorID())
}

func TestGuardAuditsMutatingDenies(t *testing.T) {
	rec := &memRecorder{}
	guard := &Guard{Audit: rec}
	staff := Principal{UserID: 3, OrgID: 7, Role: RoleStaff, Active: true}

	err := guard.Require(context.Background(), 7, staff, RoleManager,
		Action{Name: "product.delete", Entity: "Product", EntityID: "9", Mutating: true})
	require.True(t, apperr.IsKind(err, apperr.Forbidden))

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, "DENY:product.delete", entry.Action)
	assert.Equal(t, uint(7), entry.OrgID)
	assert.Equal(t, "3", entry.Actor)
	assert.Equal(t, "Product", entry.Entity)
	assert.Equal(t, "9", entry.EntityID)
}

func TestGuardDoesNotAuditMutatingAllows(t *testing.T) {
	// The operation's own audit entry is the allow record.
	rec := &memRecorder{}
	guard := &Guard{Audit: rec}
	manager := Principal{UserID: 3, OrgID: 7, Role: RoleManager, Active: true}

	err := guard.Require(context.Background(), 7, manager, RoleManager,
		Action{Name: "product.delete", Entity: "Product", Mutating: true})
	require.NoError(t, err)
	assert.Empty(t, rec.entries)
}

func TestGuardAuditsReadAllowsWhenEnabled(t *testing.T) {
	rec := &memRecorder{}
	act := Action{Name: "product.list", Entity: "Product"}
	staff := Principal{UserID: 3, OrgID: 7, Role: RoleStaff, Active: true}

	guard := &Guard{Audit: rec}
	require.NoError(t, guard.Require(context.Background(), 7, staff, RoleStaff, act))
	assert.Empty(t, rec.entries)

	guard.AuditReadAllow = true
	require.NoError(t, guard.Require(context.Background(), 7, staff, RoleStaff, act))
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "ALLOW:product.list", rec.entries[0].Action)
}

func TestGuardDoesNotAuditReadDenies(t *testing.T) {
	rec := &memRecorder{}
	guard := &Guard{Audit: rec}
	staff := Principal{UserID: 3, OrgID: 7, Role: RoleStaff, Active: true}

	err := guard.Require(context.Background(), 7, staff, RoleAdmin,
		Action{Name: "audit.list", Entity: "AuditLog"})
	require.True(t, apperr.IsKind(err, apperr.Forbidden))
	assert.Empty(t, rec.entries)
}
