package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/sessions/{id}", 200, 0.001)

	body := scrape(t)
	if !strings.Contains(body, "app_build_info") && !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestSearchMetrics_Labels(t *testing.T) {
	SetPageView("list")
	defer SetPageView("")

	IncSearchRequest("cache_hit")
	IncPlan(true)
	ObserveCacheOp("get", errors.New("x"), 0.001)
	SetActiveSessions(3)

	body := scrape(t)
	for _, want := range []string{
		`search_requests_total{outcome="cache_hit",page_view="list"} `,
		`search_plans_total{mode="overview"} `,
		`cache_op_duration_seconds_bucket{op="get",result="error"`,
		`search_sessions_active 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
