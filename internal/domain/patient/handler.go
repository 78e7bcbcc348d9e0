package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/validate"
	"github.com/ehr/caretrail/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var p Patient
	if err := validate.Bind(c, &p, entity); err != nil {
		return err
	}
	if err := h.svc.CreatePatient(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// ListPatients pages through all patients, or looks one up with ?fhir_id=.
func (h *Handler) ListPatients(c echo.Context) error {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}

	if fhirID := c.QueryParam("fhir_id"); fhirID != "" {
		p, err := h.svc.GetPatientByFHIRID(c.Request().Context(), fhirID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return c.JSON(http.StatusOK, pagination.NewResponse([]*Patient{}, 0, pg))
		case err != nil:
			return err
		}
		// The match is a one-row result set; offset still applies to it.
		page := []*Patient{}
		if pg.Offset == 0 {
			page = append(page, p)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(page, 1, pg))
	}

	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var p Patient
	if err := validate.Bind(c, &p, entity); err != nil {
		return err
	}
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), &p); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
