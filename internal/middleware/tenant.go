package middleware

import (
	"net/http"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/tenant"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// TenantMiddleware resolves the canonical tenant id for the request.
// Runs after AuthMiddleware; business handlers never see a request
// without both an authenticated principal and a consistent tenant.
func TenantMiddleware(resolver *tenant.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			principal, ok := PrincipalFrom(c)
			if !ok {
				prometheus.TenantContextMissingCounter.Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			orgID, err := resolver.Resolve(
				c.Request().Context(),
				c.Request().Host,
				c.Request().Header.Get(tenant.HeaderName),
				&principal,
			)
			if err != nil {
				if apperr.IsKind(err, apperr.IdentityMismatch) {
					// Logged for security review: a credential asserted a
					// tenant it was not issued for.
					prometheus.TenantMismatchCounter.Inc()
					log.Warn("Tenant identity mismatch",
						zap.Uint("credential_org_id", principal.OrgID),
						zap.String("asserted_tenant", c.Request().Header.Get(tenant.HeaderName)),
						zap.String("host", c.Request().Host))
				} else {
					prometheus.TenantContextMissingCounter.Inc()
					log.Warn("Tenant resolution failed", zap.Error(err))
				}
				return c.JSON(apperr.HTTPStatus(apperr.KindOf(err)), echo.Map{
					"error": apperr.ReasonOf(err),
					"kind":  string(apperr.KindOf(err)),
				})
			}

			c.Set(orgIDKey, orgID)
			c.Set("logger", log.With(zap.Uint("org_id", orgID)))

			return next(c)
		}
	}
}
