package tenant

import (
	"context"
	"strconv"
	"strings"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
)

// HeaderName is the explicit tenant header. Service-to-service calls use
// it to override subdomain-based routing; it is never trusted over the
// credential's bound organization.
const HeaderName = "X-Tenant-ID"

// OrgLookup resolves a subdomain token to an organization id
type OrgLookup interface {
	IDBySubdomain(ctx context.Context, subdomain string) (uint, error)
}

// Resolver derives exactly one canonical tenant id per request from the
// request addressing metadata and the authenticated principal.
type Resolver struct {
	Orgs OrgLookup
}

// NewResolver creates a resolver backed by the given org lookup
func NewResolver(orgs OrgLookup) *Resolver {
	return &Resolver{Orgs: orgs}
}

// SubdomainFromHost extracts the tenant subdomain from a host string,
// ignoring any port. Hosts with fewer than three labels carry no
// subdomain (e.g. "example.com", "localhost").
func SubdomainFromHost(host string) string {
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 3 {
		return parts[0]
	}
	return ""
}

// Resolve produces the single tenant id scoping the rest of the
// operation. Precedence: explicit header, then subdomain, then the
// principal's own organization. A resolved tenant that conflicts with
// the principal's bound organization fails with IdentityMismatch.
func (r *Resolver) Resolve(ctx context.Context, host, header string, p *rbac.Principal) (uint, error) {
	var orgID uint

	switch {
	case strings.TrimSpace(header) != "":
		v, err := strconv.ParseUint(strings.TrimSpace(header), 10, 32)
		if err != nil || v == 0 {
			return 0, apperr.New(apperr.ValidationFailure, "invalid tenant header")
		}
		orgID = uint(v)

	case SubdomainFromHost(host) != "":
		sub := SubdomainFromHost(host)
		id, err := r.Orgs.IDBySubdomain(ctx, sub)
		if err != nil {
			return 0, err
		}
		orgID = id

	case p != nil && !p.System:
		orgID = p.OrgID

	default:
		return 0, apperr.New(apperr.Unauthenticated, "no tenant could be resolved")
	}

	if p != nil && !p.System && orgID != p.OrgID {
		return 0, apperr.New(apperr.IdentityMismatch, "asserted tenant conflicts with credential's organization")
	}

	return orgID, nil
}
