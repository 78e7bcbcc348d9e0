package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handler serves the login and identity endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts POST /login on the unauthenticated auth group.
func (h *Handler) RegisterPublicRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
}

// RegisterRoutes mounts the endpoints that require a bearer token.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("malformed login request")
	}

	result, err := h.svc.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Me(c echo.Context) error {
	id := IdentityFromContext(c.Request().Context())
	if id == nil {
		return apperr.InvalidToken(nil)
	}
	return c.JSON(http.StatusOK, id)
}
