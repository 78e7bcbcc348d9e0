package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	RequestIDHeader = echo.HeaderXRequestID
	// RequestIDKey is the echo.Context key holding the request id.
	RequestIDKey = "request_id"
)

// maxRequestIDLen bounds ids accepted from callers before they reach logs.
const maxRequestIDLen = 128

// RequestID propagates the caller's X-Request-ID or assigns a fresh one.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = uuid.NewString()
			}
			c.Set(RequestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// RequestIDFrom returns the id assigned by RequestID, or "".
func RequestIDFrom(c echo.Context) string {
	rid, _ := c.Get(RequestIDKey).(string)
	return rid
}
