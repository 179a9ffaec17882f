package middleware

import (
	"strconv"
	"time"

	"github.com/Creedyfish/multitenant-backend/prometheus"
	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records HTTP request counts and durations
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		status := strconv.Itoa(c.Response().Status)
		method := c.Request().Method
		path := c.Path()

		prometheus.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
		prometheus.HttpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

		return err
	}
}
