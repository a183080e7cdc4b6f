package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTestEcho(p *Provider) *echo.Echo {
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/api/v1/wellness/:report", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "down")
	})
	e.GET("/plain-error", func(c echo.Context) error {
		return errors.New("unhandled")
	})
	e.GET(MetricsPath, p.PrometheusHandler())
	return e
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestConfig_Defaults(t *testing.T) {
	p := NewProvider(Config{})
	if p.cfg.ServiceName != "wellness-server" {
		t.Fatalf("expected default ServiceName, got %q", p.cfg.ServiceName)
	}
	if p.cfg.ServiceVersion != "0.0.0" {
		t.Fatalf("expected default ServiceVersion, got %q", p.cfg.ServiceVersion)
	}
	if !p.cfg.metricsOn() {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestMetricsMiddleware_RecordsByRoute(t *testing.T) {
	p := NewProvider(Config{})
	e := newTestEcho(p)

	serve(e, "/api/v1/wellness/daily-sales")
	serve(e, "/api/v1/wellness/daily-closing")

	if got := p.RequestCount(http.MethodGet, "/api/v1/wellness/:report", "200"); got != 2 {
		t.Fatalf("expected 2 observations on the route pattern, got %d", got)
	}
	if p.ActiveRequests() != 0 {
		t.Errorf("expected no active requests, got %d", p.ActiveRequests())
	}
}

func TestMetricsMiddleware_ErrorStatus(t *testing.T) {
	p := NewProvider(Config{})
	e := newTestEcho(p)

	serve(e, "/boom")
	serve(e, "/plain-error")

	if got := p.RequestCount(http.MethodGet, "/boom", "503"); got != 1 {
		t.Errorf("expected the HTTP error code to be recorded, got %d", got)
	}
	if got := p.RequestCount(http.MethodGet, "/plain-error", "500"); got != 1 {
		t.Errorf("expected a plain error to count as 500, got %d", got)
	}
}

func TestMetricsMiddleware_Disabled(t *testing.T) {
	p := NewProvider(Config{MetricsEnabled: BoolPtr(false)})
	e := newTestEcho(p)

	serve(e, "/api/v1/wellness/daily-sales")
	p.ReportFailure("daily-sales", "upstream")

	if got := p.RequestCount(http.MethodGet, "/api/v1/wellness/:report", "200"); got != 0 {
		t.Errorf("expected nothing recorded, got %d", got)
	}
	if got := p.Failures("daily-sales", "upstream"); got != 0 {
		t.Errorf("expected no failures recorded, got %d", got)
	}
}

func TestReportFailure_Increments(t *testing.T) {
	p := NewProvider(Config{})
	p.ReportFailure("occupancy-rate", "timeout")
	p.ReportFailure("occupancy-rate", "timeout")
	p.ReportFailure("occupancy-rate", "invalid_range")

	if got := p.Failures("occupancy-rate", "timeout"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := p.Failures("occupancy-rate", "invalid_range"); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestPrometheusHandler_Format(t *testing.T) {
	p := NewProvider(Config{ServiceVersion: "1.2.3"})
	p.GaugeFunc("db_pool_idle_connections", "Idle pool connections.", func() int64 { return 4 })
	e := newTestEcho(p)

	serve(e, "/api/v1/wellness/daily-sales")
	p.ReportFailure("daily-closing", "upstream")

	rec := serve(e, MetricsPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()

	for _, want := range []string{
		`service_info{service="wellness-server",version="1.2.3",environment="development"} 1`,
		"# TYPE http_server_request_duration_seconds histogram",
		`http_server_request_duration_seconds_count{method="GET",route="/api/v1/wellness/:report",status_code="200"} 1`,
		`http_server_request_duration_seconds_bucket{method="GET",route="/api/v1/wellness/:report",status_code="200",le="+Inf"} 1`,
		`http_server_response_size_bytes_count{route="/api/v1/wellness/:report"} 1`,
		`report_failures_total{report="daily-closing",kind="upstream"} 1`,
		"db_pool_idle_connections 4",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected exposition to contain %q\n%s", want, body)
		}
	}
}

func TestHistogram_Buckets(t *testing.T) {
	h := newHistogram([]float64{1, 5, 10})
	for _, v := range []float64{0.5, 1, 3, 7, 20} {
		h.Observe(v)
	}
	cum := h.cumulativeBuckets()
	want := []int64{2, 3, 4}
	for i := range want {
		if cum[i] != want[i] {
			t.Errorf("bucket %d: expected %d, got %d", i, want[i], cum[i])
		}
	}
	if h.Count() != 5 {
		t.Errorf("expected count 5, got %d", h.Count())
	}
	if h.Sum() != 31.5 {
		t.Errorf("expected sum 31.5, got %g", h.Sum())
	}
}

func TestMetrics_ConcurrentSafe(t *testing.T) {
	p := NewProvider(Config{})
	e := newTestEcho(p)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			serve(e, fmt.Sprintf("/api/v1/wellness/r%d", i%5))
			p.ReportFailure("daily-sales", "upstream")
		}(i)
	}
	wg.Wait()

	if got := p.RequestCount(http.MethodGet, "/api/v1/wellness/:report", "200"); got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
	if got := p.Failures("daily-sales", "upstream"); got != 50 {
		t.Errorf("expected 50, got %d", got)
	}
}
