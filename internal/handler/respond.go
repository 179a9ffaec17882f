package handler

import (
	"net/http"
	"strconv"

	"github.com/Creedyfish/multitenant-backend/internal/apperr"
	"github.com/Creedyfish/multitenant-backend/internal/middleware"
	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError renders a classified error as the client-visible kind and
// reason. Unclassified errors are logged and surfaced as a bare 500.
func respondError(c echo.Context, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		logger.FromEcho(c).Error("Unhandled error", zap.Error(err))
	}
	if kind == apperr.Forbidden {
		prometheus.AuthzDeniedCounter.WithLabelValues(c.Path(), apperr.ReasonOf(err)).Inc()
	}
	return c.JSON(apperr.HTTPStatus(kind), echo.Map{
		"error": apperr.ReasonOf(err),
		"kind":  string(kind),
	})
}

// requestScope returns the resolved org and principal placed on the
// context by the auth and tenant middleware
func requestScope(c echo.Context) (uint, rbac.Principal, error) {
	principal, ok := middleware.PrincipalFrom(c)
	if !ok {
		return 0, rbac.Principal{}, apperr.New(apperr.Unauthenticated, "authentication required")
	}
	orgID, ok := middleware.OrgIDFrom(c)
	if !ok {
		return 0, rbac.Principal{}, apperr.New(apperr.Unauthenticated, "tenant context required")
	}
	return orgID, principal, nil
}

// idParam parses the numeric :id path parameter
func idParam(c echo.Context) (uint, error) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || v == 0 {
		return 0, apperr.New(apperr.ValidationFailure, "invalid id")
	}
	return uint(v), nil
}

// pagination reads skip/limit query parameters with defaults
func pagination(c echo.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.QueryParam("skip"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}

func ok(c echo.Context, body interface{}) error {
	return c.JSON(http.StatusOK, body)
}

func created(c echo.Context, body interface{}) error {
	return c.JSON(http.StatusCreated, body)
}
