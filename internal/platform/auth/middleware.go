package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

type contextKey string

const identityKey contextKey = "identity"

// Verifier validates a bearer token.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// JWTMiddleware requires a valid bearer token on every request not matched by
// skipper and stores the caller's identity in the request context.
func JWTMiddleware(v Verifier, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return &apperr.Error{Kind: apperr.KindUnauthorized, Message: "missing authorization header"}
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			tokenStr = strings.TrimSpace(tokenStr)
			if !ok || !strings.EqualFold(scheme, "bearer") || tokenStr == "" {
				return &apperr.Error{Kind: apperr.KindUnauthorized, Message: "invalid authorization format"}
			}

			id, err := v.Verify(tokenStr)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

// IdentityFromContext returns the identity stored by JWTMiddleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}
