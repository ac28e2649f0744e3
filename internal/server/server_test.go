package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/pipeline"
)

type fakeService struct {
	metrics map[string]*pipeline.Metrics
	errs    map[string]error
	periods []string
}

func (f *fakeService) MetricsByName(ctx context.Context, name, yyyymm string) (*pipeline.Metrics, error) {
	f.periods = append(f.periods, yyyymm)
	if yyyymm == "bad" {
		return nil, fmt.Errorf("%w: %q is not YYYYMM", filing.ErrInvalidPeriod, yyyymm)
	}
	if err, ok := f.errs[name]; ok {
		return f.metrics[name], err
	}
	if m, ok := f.metrics[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q", filing.ErrNotFound, name)
}

func newTestServer(t *testing.T) (*Server, *fakeService) {
	t.Helper()
	svc := &fakeService{
		metrics: map[string]*pipeline.Metrics{
			"삼성전자": {
				EntityID: "00126380",
				Target:   "2025Q3",
				Variant:  "Consolidated",
				Quarters: []filing.QuarterlyMetric{
					{Year: 2025, Quarter: 1, Revenue: 79_140_000_000_000, OperatingIncome: 6_685_000_000_000},
					{Year: 2025, Quarter: 2, Revenue: 74_570_000_000_000, OperatingIncome: 4_676_000_000_000},
				},
			},
			"휴면회사": {EntityID: "00999999", Target: "2025Q3", Quarters: []filing.QuarterlyMetric{}},
		},
		errs: map[string]error{
			"휴면회사": filing.ErrNoData,
			"삼성":   &filing.AmbiguousError{Name: "삼성", Candidates: []string{"삼성전자", "삼성전기"}},
		},
	}
	srv, err := New(svc, "202509")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, svc
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/report"`) {
		t.Error("expected lookup form in response body")
	}
	if !strings.Contains(body, `value="202509"`) {
		t.Error("expected default period in form")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := get(t, srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAPIMetrics(t *testing.T) {
	srv, svc := newTestServer(t)
	rec := get(t, srv, "/api/metrics?company=%EC%82%BC%EC%84%B1%EC%A0%84%EC%9E%90")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp metricsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.EntityID != "00126380" || resp.Empty {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Quarters) != 2 || len(resp.Rows) != 2 {
		t.Fatalf("expected 2 quarters and rows, got %+v", resp)
	}
	if resp.Rows[0].Label != "2025 Q1" {
		t.Errorf("expected label '2025 Q1', got %q", resp.Rows[0].Label)
	}
	if svc.periods[0] != "202509" {
		t.Errorf("expected default period, got %q", svc.periods[0])
	}
}

func TestAPIMetricsErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		query  string
		status int
	}{
		{"", http.StatusBadRequest},
		{"?company=Nokia", http.StatusNotFound},
		{"?company=%EC%82%BC%EC%84%B1", http.StatusConflict},
		{"?company=Nokia&period=bad", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := get(t, srv, "/api/metrics"+tt.query)
		if rec.Code != tt.status {
			t.Errorf("%q: expected %d, got %d", tt.query, tt.status, rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
			t.Errorf("%q: expected error body, got %q", tt.query, rec.Body.String())
		}
	}

	rec := get(t, srv, "/api/metrics?company=%EC%82%BC%EC%84%B1")
	var resp errorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Candidates) != 2 {
		t.Errorf("expected candidates in conflict response, got %+v", resp)
	}
}

func TestAPIMetricsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/metrics?company=%ED%9C%B4%EB%A9%B4%ED%9A%8C%EC%82%AC")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp metricsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if !resp.Empty || len(resp.Quarters) != 0 {
		t.Errorf("expected empty result, got %+v", resp)
	}
	if !strings.Contains(rec.Body.String(), `"quarters":[]`) {
		t.Errorf("expected empty quarters array, got %s", rec.Body.String())
	}
}

func TestReportRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/report?company=%EC%82%BC%EC%84%B1%EC%A0%84%EC%9E%90&period=202509")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<table>") {
		t.Error("expected rendered markdown table")
	}
	if !strings.Contains(body, "2025 Q2") {
		t.Error("expected quarter label in report")
	}
	if !strings.Contains(body, "79,140,000") {
		t.Error("expected revenue in millions")
	}
}

func TestReportRouteAmbiguous(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/report?company=%EC%82%BC%EC%84%B1")

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "삼성전기") {
		t.Error("expected candidate list in response")
	}
}

func TestReportRouteWithoutCompany(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/report")
	if rec.Code != http.StatusFound {
		t.Errorf("expected 302, got %d", rec.Code)
	}
}

func TestStaticRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/static/style.css")

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-sans") {
		t.Error("expected CSS content")
	}
}
