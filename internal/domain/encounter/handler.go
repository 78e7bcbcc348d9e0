package encounter

import (
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
	api.POST("/patients/:id/encounters", h.CreateEncounter)
	api.GET("/patients/:id/encounters", h.ListEncounters)
	api.GET("/encounters/:id", h.GetEncounter)
	api.PUT("/encounters/:id", h.UpdateEncounter)
	api.DELETE("/encounters/:id", h.DeleteEncounter)
}

// CreateEncounter takes the patient from the path; a patient_id in the body is ignored.
func (h *Handler) CreateEncounter(c echo.Context) error {
	patientID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var enc Encounter
	if err := validate.Bind(c, &enc, entity); err != nil {
		return err
	}
	enc.PatientID = patientID
	if err := h.svc.CreateEncounter(c.Request().Context(), &enc); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, enc)
}

func (h *Handler) ListEncounters(c echo.Context) error {
	patientID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	pg, err := pagination.FromContext(c)
	if err != nil {
		return apperr.Validation("%s", err.Error())
	}
	items, total, err := h.svc.ListEncountersByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetEncounter(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	enc, err := h.svc.GetEncounter(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) UpdateEncounter(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var enc Encounter
	if err := validate.Bind(c, &enc, entity); err != nil {
		return err
	}
	enc.ID = id
	if err := h.svc.UpdateEncounter(c.Request().Context(), &enc); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enc)
}

func (h *Handler) DeleteEncounter(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEncounter(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
