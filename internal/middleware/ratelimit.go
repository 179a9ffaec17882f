package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Creedyfish/multitenant-backend/pkg/config"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitMiddleware applies a best-effort fixed-window limit per
// client before the request reaches business logic. Redis unavailability
// degrades to unthrottled operation, never to a failed request.
func RateLimitMiddleware(client *redis.Client, cfg *config.RateLimitConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Enabled || client == nil {
				return next(c)
			}
			log := logger.FromEcho(c)
			ctx := c.Request().Context()

			window := time.Now().Unix() / int64(cfg.Window.Seconds())
			key := fmt.Sprintf("ratelimit:%s:%d", c.RealIP(), window)

			pipe := client.TxPipeline()
			count := pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, cfg.Window)
			if _, err := pipe.Exec(ctx); err != nil {
				// Advisory mechanism: proceed unthrottled.
				log.Debug("Rate limiter unavailable, proceeding", zap.Error(err))
				return next(c)
			}

			if count.Val() > int64(cfg.Requests) {
				prometheus.RateLimitTrippedCounter.Inc()
				log.Warn("Rate limit exceeded", zap.String("ip", c.RealIP()))
				return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many requests"})
			}

			return next(c)
		}
	}
}
