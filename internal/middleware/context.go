package middleware

import (
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/labstack/echo/v4"
)

const (
	principalKey = "principal"
	orgIDKey     = "org_id"
)

// PrincipalFrom returns the authenticated principal set by AuthMiddleware
func PrincipalFrom(c echo.Context) (rbac.Principal, bool) {
	p, ok := c.Get(principalKey).(rbac.Principal)
	return p, ok
}

// OrgIDFrom returns the resolved tenant id set by TenantMiddleware
func OrgIDFrom(c echo.Context) (uint, bool) {
	orgID, ok := c.Get(orgIDKey).(uint)
	return orgID, ok
}
