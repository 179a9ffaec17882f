package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports service liveness and dependency reachability
type HealthHandler struct {
	serviceName string
	db          *gorm.DB
	redis       *redis.Client
}

// NewHealthHandler creates the handler
func NewHealthHandler(serviceName string, db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, db: db, redis: redisClient}
}

// Check returns 200 when the database is reachable. Redis is reported
// but does not fail the check; the service degrades without it.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	dbStatus := "ok"
	redisStatus := "ok"

	if sqlDB, err := h.db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if h.redis == nil {
		redisStatus = "disabled"
	} else if err := h.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unreachable"
	}

	return c.JSON(status, echo.Map{
		"service": h.serviceName,
		"db":      dbStatus,
		"redis":   redisStatus,
	})
}
