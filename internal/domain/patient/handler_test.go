package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/pkg/pagination"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_CreatePatient(t *testing.T) {
	h, e := newTestHandler()

	body := `{"first_name":"Jane","last_name":"Doe","date_of_birth":"1985-04-12","gender":"female","fhir_id":"ext-9"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, body), rec)

	if err := h.CreatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var got map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got["date_of_birth"] != "1985-04-12" {
		t.Errorf("expected date_of_birth 1985-04-12, got %v", got["date_of_birth"])
	}
	if got["id"] == "" || got["created_at"] == nil {
		t.Errorf("expected server-set fields, got %v", got)
	}
	if got["fhir_id"] != "ext-9" {
		t.Errorf("expected fhir_id ext-9, got %v", got["fhir_id"])
	}
}

func TestHandler_CreatePatient_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing names", `{"date_of_birth":"1985-04-12"}`},
		{"bad date", `{"first_name":"a","last_name":"b","date_of_birth":"12/04/1985"}`},
		{"malformed json", `{"first_name":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler()
			c := e.NewContext(jsonRequest(http.MethodPost, tt.body), httptest.NewRecorder())
			err := h.CreatePatient(c)
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestHandler_GetPatient(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	h.svc.CreatePatient(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.GetPatient(c); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetPatient(c); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestHandler_ListPatients(t *testing.T) {
	h, e := newTestHandler()
	for i := 0; i < 3; i++ {
		h.svc.CreatePatient(context.Background(), validPatient())
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=2", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp pagination.Response[Patient]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("unexpected page: total=%d len=%d has_more=%v", resp.Total, len(resp.Data), resp.HasMore)
	}
}

func TestHandler_ListPatients_Empty(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", rec.Body.String())
	}
}

func TestHandler_ListPatients_ByFHIRID(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	p.FHIRID = strPtr("ext-1")
	h.svc.CreatePatient(context.Background(), p)
	h.svc.CreatePatient(context.Background(), validPatient())

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?fhir_id=ext-1", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response[Patient]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Data[0].ID != p.ID {
		t.Errorf("expected the matching patient only, got %+v", resp)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/?fhir_id=missing", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":0`) {
		t.Errorf("expected empty result, got %s", rec.Body.String())
	}
}

func TestHandler_ListPatients_ByFHIRIDHonoursOffset(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	p.FHIRID = strPtr("ext-2")
	h.svc.CreatePatient(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?fhir_id=ext-2&offset=5", nil), rec)
	if err := h.ListPatients(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response[Patient]
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Data) != 0 || resp.HasMore || resp.Offset != 5 {
		t.Errorf("expected an empty page past the single match, got %+v", resp)
	}
}

func TestHandler_ListPatients_BadPagination(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?limit=abc", nil), httptest.NewRecorder())
	if err := h.ListPatients(c); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_UpdatePatient(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	h.svc.CreatePatient(context.Background(), p)

	body := `{"first_name":"Janet","last_name":"Doe","date_of_birth":"1985-04-12"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPut, body), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.UpdatePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	got, _ := h.svc.GetPatient(context.Background(), p.ID)
	if got.FirstName != "Janet" {
		t.Errorf("expected Janet, got %s", got.FirstName)
	}
	if got.Gender != nil {
		t.Errorf("full replace should clear gender, got %v", *got.Gender)
	}
}

func TestHandler_DeletePatient(t *testing.T) {
	h, e := newTestHandler()
	p := validPatient()
	h.svc.CreatePatient(context.Background(), p)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())

	if err := h.DeletePatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}
