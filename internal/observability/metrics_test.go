package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesPrometheusMetrics(t *testing.T) {
	metrics := NewMetrics()
	metrics.SetCacheSize(10)

	body := scrape(t, metrics)
	if !strings.Contains(body, "roledash_user_cache_records 10") {
		t.Fatalf("expected cache gauge, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "roledash_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "roledash_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}

func TestRecordMutation(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordMutation("delete", "rolled_back")
	metrics.RecordMutation("delete", "rolled_back")

	body := scrape(t, metrics)
	if !strings.Contains(body, "roledash_user_mutations_total{op=\"delete\",phase=\"rolled_back\"} 2") {
		t.Fatalf("expected mutation counter, got: %s", body)
	}

	var nilMetrics *Metrics
	nilMetrics.RecordMutation("create", "confirmed")
	nilMetrics.SetCacheSize(1)
}

func TestMetricsUnknownRoute(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(req); got != "unknown" {
		t.Fatalf("expected unknown route, got %s", got)
	}
}

func TestRegistererExposesComponentCollectors(t *testing.T) {
	metrics := NewMetrics()
	events := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roledash_component_events_total",
		Help: "Test counter registered by a component.",
	})
	metrics.Registerer().MustRegister(events)
	events.Add(3)

	body := scrape(t, metrics)
	if !strings.Contains(body, "roledash_component_events_total 3") {
		t.Fatalf("expected component counter, got: %s", body)
	}
}
