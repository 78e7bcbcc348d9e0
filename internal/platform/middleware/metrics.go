package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/metrics"
)

// Metrics records request count and latency by route template, so ids in
// paths do not explode label cardinality. Unmatched routes share one label.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
