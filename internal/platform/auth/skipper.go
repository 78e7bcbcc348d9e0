package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route templates served without a bearer token.
var publicPaths = map[string]bool{
	"/health":         true,
	"/health/db":      true,
	"/metrics":        true,
	"/api/auth/login": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}
