package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/pkg/jwtutil"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PrincipalLoader resolves a verified credential to a principal. The
// token service has already verified the claims; the loader only reads
// the current role and active flag.
type PrincipalLoader interface {
	Load(ctx context.Context, userID uint) (rbac.Principal, error)
}

// AuthMiddleware verifies the JWT token and builds the acting principal
func AuthMiddleware(jwtUtil *jwtutil.JWTUtil, users PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromEcho(c)

			// Track authentication attempts
			prometheus.AuthAttemptsCounter.Inc()

			tokenString := c.Request().Header.Get("Authorization")
			if tokenString == "" {
				log.Warn("Missing authorization token")
				prometheus.AuthErrorsCounter.Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			// Remove "Bearer " prefix if present
			if len(tokenString) > 7 && strings.ToUpper(tokenString[0:7]) == "BEARER " {
				tokenString = tokenString[7:]
			}

			claims, err := jwtUtil.ValidateToken(tokenString)
			if err != nil {
				log.Warn("Invalid token", zap.Error(err))
				prometheus.AuthErrorsCounter.Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			principal, err := users.Load(c.Request().Context(), claims.UserID)
			if err != nil {
				log.Warn("Failed to resolve principal", zap.Uint("user_id", claims.UserID), zap.Error(err))
				prometheus.AuthErrorsCounter.Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
			}

			prometheus.AuthSuccessCounter.Inc()

			c.Set(principalKey, principal)

			log = log.With(
				zap.Uint("user_id", principal.UserID),
				zap.Uint("credential_org_id", principal.OrgID),
				zap.String("role", string(principal.Role)),
			)
			c.Set("logger", log)

			return next(c)
		}
	}
}
