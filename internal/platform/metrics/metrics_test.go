package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderExportsCounters(t *testing.T) {
	t.Parallel()
	r := New()
	r.LoadFinished("success")
	r.LoadFinished("success")
	r.LoadFinished("file_not_found")
	r.Unloaded()
	r.LoadedProviders(3)
	r.TestCaseFinished("Success", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`provhost_provider_loads_total{outcome="success"} 2`,
		`provhost_provider_loads_total{outcome="file_not_found"} 1`,
		`provhost_provider_unloads_total 1`,
		`provhost_loaded_providers 3`,
		`provhost_test_cases_total{status="Success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	t.Parallel()
	var r *Recorder
	r.LoadFinished("success")
	r.Unloaded()
	r.LoadedProviders(1)
	r.TestCaseFinished("Failure", time.Second)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 from nil recorder, got %d", rec.Code)
	}
}
