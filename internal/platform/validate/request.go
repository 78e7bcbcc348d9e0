package validate

import (
	"errors"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// PathID parses the named path parameter as a UUID. The nil UUID is never
// issued, so it is rejected like any other malformed id.
func PathID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

// Bind decodes the request body into v. Decoder failures become validation
// errors mentioning what.
func Bind(c echo.Context, v interface{}, what string) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if s, ok := he.Message.(string); ok {
			msg = s
		}
	}
	return apperr.Validation("malformed %s: %s", what, msg)
}
