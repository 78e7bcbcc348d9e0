package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/ehr/caretrail/internal/platform/apperr"
	"github.com/ehr/caretrail/internal/platform/metrics"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if RequestIDFrom(c) == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := RequestIDFrom(c); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	_ = RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversized(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = RequestID()(func(c echo.Context) error { return nil })(c)

	if got := rec.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("expected oversized id to be replaced, got %d bytes", len(got))
	}
}

func newLoggedEcho(buf *bytes.Buffer) *echo.Echo {
	logger := zerolog.New(buf)
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(RequestID(), Logger(logger))
	return e
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/api/v1/patients/:id", func(c echo.Context) error {
		if zerolog.Ctx(c.Request().Context()).GetLevel() == zerolog.Disabled {
			t.Error("expected request-scoped logger in context")
		}
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/abc", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["request_id"] != "rid-1" {
		t.Errorf("expected request_id rid-1, got %v", entry["request_id"])
	}
	if entry["route"] != "/api/v1/patients/:id" {
		t.Errorf("expected route template, got %v", entry["route"])
	}
	if entry["status"] != float64(200) || entry["level"] != "info" {
		t.Errorf("unexpected status/level: %v/%v", entry["status"], entry["level"])
	}
}

func TestLogger_LogsFinalStatusOfError(t *testing.T) {
	var buf bytes.Buffer
	e := newLoggedEcho(&buf)
	e.GET("/missing", func(c echo.Context) error {
		return apperr.NotFound("patient")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q", buf.String())
	}
	if entry["status"] != float64(404) || entry["level"] != "warn" {
		t.Errorf("expected warn/404, got %v/%v", entry["level"], entry["status"])
	}
}

func TestRecovery_ConvertsPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var buf bytes.Buffer
	err := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("boom")
	})(c)

	if apperr.KindOf(err) != apperr.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("expected panic to be logged, got %q", buf.String())
	}
}

func TestRecovery_PassesThroughErrors(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	want := errors.New("plain")

	err := Recovery(zerolog.Nop())(func(c echo.Context) error { return want })(c)
	if err != want {
		t.Errorf("expected error to pass through, got %v", err)
	}
}

func TestMetrics_RecordsRouteTemplate(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	e.Use(Metrics(m))
	e.GET("/api/v1/encounters/:id", func(c echo.Context) error {
		if c.Param("id") == "gone" {
			return apperr.NotFound("encounter")
		}
		return c.NoContent(http.StatusOK)
	})

	for _, id := range []string{"a", "b", "gone"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/encounters/"+id, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/encounters/:id", "200")); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/encounters/:id", "404")); got != 1 {
		t.Errorf("expected 1 not-found request, got %v", got)
	}
}
