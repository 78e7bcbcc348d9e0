package clinical

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
	api.POST("/encounters/:id/vital-signs", h.CreateVitalSign)
	api.GET("/encounters/:id/vital-signs", h.ListVitalSigns)
	api.GET("/vital-signs/:id", h.GetVitalSign)
	api.PUT("/vital-signs/:id", h.UpdateVitalSign)
	api.DELETE("/vital-signs/:id", h.DeleteVitalSign)

	api.POST("/encounters/:id/diagnoses", h.CreateDiagnosis)
	api.GET("/encounters/:id/diagnoses", h.ListDiagnoses)
	api.GET("/diagnoses/:id", h.GetDiagnosis)
	api.PUT("/diagnoses/:id", h.UpdateDiagnosis)
	api.DELETE("/diagnoses/:id", h.DeleteDiagnosis)

	api.POST("/encounters/:id/treatments", h.CreateTreatment)
	api.GET("/encounters/:id/treatments", h.ListTreatments)
	api.GET("/treatments/:id", h.GetTreatment)
	api.PUT("/treatments/:id", h.UpdateTreatment)
	api.DELETE("/treatments/:id", h.DeleteTreatment)
}

func pageParams(c echo.Context) (pagination.Params, error) {
	pg, err := pagination.FromContext(c)
	if err != nil {
		return pg, apperr.Validation("%s", err.Error())
	}
	return pg, nil
}

// -- Vital Sign Handlers --

func (h *Handler) CreateVitalSign(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var v VitalSign
	if err := validate.Bind(c, &v, entityVitalSign); err != nil {
		return err
	}
	v.EncounterID = encID
	if err := h.svc.CreateVitalSign(c.Request().Context(), &v); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListVitalSigns(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	pg, err := pageParams(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListVitalSigns(c.Request().Context(), encID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetVitalSign(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetVitalSign(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdateVitalSign(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var v VitalSign
	if err := validate.Bind(c, &v, entityVitalSign); err != nil {
		return err
	}
	v.ID = id
	if err := h.svc.UpdateVitalSign(c.Request().Context(), &v); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVitalSign(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteVitalSign(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Diagnosis Handlers --

func (h *Handler) CreateDiagnosis(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var d Diagnosis
	if err := validate.Bind(c, &d, entityDiagnosis); err != nil {
		return err
	}
	d.EncounterID = encID
	if err := h.svc.CreateDiagnosis(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) ListDiagnoses(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	pg, err := pageParams(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListDiagnoses(c.Request().Context(), encID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetDiagnosis(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDiagnosis(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDiagnosis(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var d Diagnosis
	if err := validate.Bind(c, &d, entityDiagnosis); err != nil {
		return err
	}
	d.ID = id
	if err := h.svc.UpdateDiagnosis(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDiagnosis(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDiagnosis(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Treatment Handlers --

func (h *Handler) CreateTreatment(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var t Treatment
	if err := validate.Bind(c, &t, entityTreatment); err != nil {
		return err
	}
	t.EncounterID = encID
	if err := h.svc.CreateTreatment(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	encID, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	pg, err := pageParams(c)
	if err != nil {
		return err
	}
	items, total, err := h.svc.ListTreatments(c.Request().Context(), encID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTreatment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTreatment(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	var t Treatment
	if err := validate.Bind(c, &t, entityTreatment); err != nil {
		return err
	}
	t.ID = id
	if err := h.svc.UpdateTreatment(c.Request().Context(), &t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	id, err := validate.PathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTreatment(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
