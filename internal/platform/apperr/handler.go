package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope returned to every caller.
type Body struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// BodyFor converts err into the caller-visible envelope and status. Internal
// detail is dropped; token_expired is reported as unauthorized.
func BodyFor(err error) (int, Body) {
	var ae *Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case KindInternal:
			return http.StatusInternalServerError, Body{Error: KindInternal, Message: "internal error"}
		case KindTokenExpired:
			return http.StatusUnauthorized, Body{Error: KindUnauthorized, Message: "invalid token"}
		}
		return Status(ae.Kind), Body{Error: ae.Kind, Message: ae.Message}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, Body{Error: kindForStatus(he.Code), Message: fmt.Sprintf("%v", he.Message)}
	}

	return http.StatusInternalServerError, Body{Error: KindInternal, Message: "internal error"}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return KindValidation
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindInternal
	}
}

// HTTPErrorHandler replaces echo's default handler so that every failure
// leaves the server as {"error": kind, "message": msg}.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := BodyFor(err)
		rid, _ := c.Get("request_id").(string)
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error().Err(err).Str("request_id", rid).Msg("request failed")
		case KindOf(err) == KindTokenExpired:
			logger.Debug().Str("request_id", rid).Msg("expired token presented")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error().Err(err).Str("request_id", rid).Msg("write error response")
		}
	}
}
