package tenant

import (
	"context"
	"testing"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLookup map[string]uint

func (m memLookup) IDBySubdomain(ctx context.Context, subdomain string) (uint, error) {
	if id, ok := m[subdomain]; ok {
		return id, nil
	}
	return 0, apperr.New(apperr.NotFound, "unknown organization")
}

func testResolver() *Resolver {
	return NewResolver(memLookup{"acme": 10, "globex": 20})
}

func principalFor(orgID uint) *rbac.Principal {
	return &rbac.Principal{UserID: 1, OrgID: orgID, Role: rbac.RoleStaff, Active: true}
}

func TestSubdomainFromHost(t *testing.T) {
	assert.Equal(t, "acme", SubdomainFromHost("acme.example.com"))
	assert.Equal(t, "acme", SubdomainFromHost("acme.example.com:8080"))
	assert.Equal(t, "a", SubdomainFromHost("a.b.c.d"))
	assert.Equal(t, "", SubdomainFromHost("example.com"))
	assert.Equal(t, "", SubdomainFromHost("localhost"))
	assert.Equal(t, "", SubdomainFromHost("localhost:8080"))
}

func TestResolveHeaderTakesPrecedence(t *testing.T) {
	// Header wins even when the host carries a different subdomain, but
	// only when it agrees with the credential.
	orgID, err := testResolver().Resolve(context.Background(), "globex.example.com", "10", principalFor(10))
	require.NoError(t, err)
	assert.Equal(t, uint(10), orgID)
}

func TestResolveSubdomain(t *testing.T) {
	orgID, err := testResolver().Resolve(context.Background(), "acme.example.com", "", principalFor(10))
	require.NoError(t, err)
	assert.Equal(t, uint(10), orgID)
}

func TestResolveUnknownSubdomain(t *testing.T) {
	_, err := testResolver().Resolve(context.Background(), "hooli.example.com", "", principalFor(10))
	assert.True(t, apperr.IsKind(err, apperr.NotFound))
}

func TestResolveFallsBackToPrincipalOrg(t *testing.T) {
	orgID, err := testResolver().Resolve(context.Background(), "localhost:8080", "", principalFor(10))
	require.NoError(t, err)
	assert.Equal(t, uint(10), orgID)
}

func TestResolveHeaderSpoofIsIdentityMismatch(t *testing.T) {
	// A credential for org 10 asserting org 20 must not resolve.
	_, err := testResolver().Resolve(context.Background(), "localhost", "20", principalFor(10))
	assert.True(t, apperr.IsKind(err, apperr.IdentityMismatch))
}

func TestResolveSubdomainMismatch(t *testing.T) {
	_, err := testResolver().Resolve(context.Background(), "globex.example.com", "", principalFor(10))
	assert.True(t, apperr.IsKind(err, apperr.IdentityMismatch))
}

func TestResolveInvalidHeader(t *testing.T) {
	for _, header := range []string{"abc", "-1", "0", "1e3"} {
		_, err := testResolver().Resolve(context.Background(), "localhost", header, principalFor(10))
		assert.True(t, apperr.IsKind(err, apperr.ValidationFailure), "header %q", header)
	}
}

func TestResolveNothingResolvable(t *testing.T) {
	_, err := testResolver().Resolve(context.Background(), "localhost", "", nil)
	assert.True(t, apperr.IsKind(err, apperr.Unauthenticated))
}

func TestResolveSystemPrincipalUsesAssertedTenant(t *testing.T) {
	// The system principal is not bound to one org; whatever the request
	// asserts is taken as-is.
	system := rbac.SystemPrincipal()
	orgID, err := testResolver().Resolve(context.Background(), "localhost", "20", &system)
	require.NoError(t, err)
	assert.Equal(t, uint(20), orgID)
}
