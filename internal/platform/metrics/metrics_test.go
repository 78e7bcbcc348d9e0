package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

func TestRecordHTTPRequest(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/api/v1/patients/:id", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/patients/:id", 200, 7*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/v1/patients/:id", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/patients/:id", "200")); got != 2 {
		t.Errorf("expected 2 requests with status 200, got %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/patients/:id", "404")); got != 1 {
		t.Errorf("expected 1 request with status 404, got %v", got)
	}
}

func TestRecordStoreOperationAndLogin(t *testing.T) {
	m := New()
	m.RecordStoreOperation("patient", "create", "ok", time.Millisecond)
	m.RecordStoreOperation("patient", "create", "conflict", time.Millisecond)
	m.RecordLogin("failure")
	m.RecordLogin("failure")
	m.RecordLogin("success")

	if got := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("patient", "create", "conflict")); got != 1 {
		t.Errorf("expected 1 conflict, got %v", got)
	}
	if got := testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("failure")); got != 2 {
		t.Errorf("expected 2 failures, got %v", got)
	}
}

func TestObserveStore(t *testing.T) {
	m := New()
	m.ObserveStore("encounter", "get", time.Millisecond, nil)
	m.ObserveStore("encounter", "get", time.Millisecond, apperr.NotFound("encounter"))
	m.ObserveStore("encounter", "get", time.Millisecond, errors.New("boom"))

	for _, result := range []string{"ok", "not_found", "internal"} {
		if got := testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("encounter", "get", result)); got != 1 {
			t.Errorf("expected 1 %s, got %v", result, got)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordLogin("success")
	if got := testutil.ToFloat64(b.LoginAttemptsTotal.WithLabelValues("success")); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordLogin("throttled")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `caretrail_login_attempts_total{outcome="throttled"} 1`) {
		t.Errorf("expected login counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected go runtime collector in exposition")
	}
}
