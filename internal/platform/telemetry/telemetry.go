// Package telemetry records HTTP server and report metrics and serves them in
// the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsPath is where the exposition endpoint is mounted.
const MetricsPath = "/metrics"

// Config holds the telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	MetricsEnabled *bool // nil = enabled
}

func (c *Config) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "wellness-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// BoolPtr is a helper to create a *bool for Config fields.
func BoolPtr(b bool) *bool {
	return &b
}

// histogram is a thread-safe histogram. Bucket counts are stored
// non-cumulative and summed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	cum := make([]int64, len(raw))
	var running int64
	for i, c := range raw {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// LabelsKey builds the map key for a labeled series.
func LabelsKey(values ...string) string {
	return strings.Join(values, "|")
}

type histogramStore struct {
	mu    sync.RWMutex
	items map[string]*histogram
}

func (s *histogramStore) getOrCreate(key string, boundaries []float64) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok = s.items[key]; !ok {
		h = newHistogram(boundaries)
		s.items[key] = h
	}
	return h
}

func (s *histogramStore) get(key string) *histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

func (s *histogramStore) snapshot() map[string]*histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]*histogram, len(s.items))
	for k, v := range s.items {
		cp[k] = v
	}
	return cp
}

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func (s *counterStore) add(key string, delta int64) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		s.mu.Lock()
		if p, ok = s.items[key]; !ok {
			p = new(int64)
			s.items[key] = p
		}
		s.mu.Unlock()
	}
	atomic.AddInt64(p, delta)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
	}
	return cp
}

// defaultDurationBuckets are request duration boundaries in seconds.
var defaultDurationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0,
}

// defaultSizeBuckets are response size boundaries in bytes. Exports are the
// large end.
var defaultSizeBuckets = []float64{
	100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
}

type gaugeFunc struct {
	name string
	help string
	fn   func() int64
}

// Provider holds all metric state.
type Provider struct {
	cfg Config

	durations *histogramStore // method|route|status
	sizes     *histogramStore // route
	failures  *counterStore   // report|kind
	active    int64

	gaugeMu sync.RWMutex
	gauges  []gaugeFunc
}

func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{
		cfg:       cfg,
		durations: &histogramStore{items: make(map[string]*histogram)},
		sizes:     &histogramStore{items: make(map[string]*histogram)},
		failures:  &counterStore{items: make(map[string]*int64)},
	}
}

// GaugeFunc registers a gauge whose value is read at scrape time.
func (p *Provider) GaugeFunc(name, help string, fn func() int64) {
	p.gaugeMu.Lock()
	defer p.gaugeMu.Unlock()
	p.gauges = append(p.gauges, gaugeFunc{name: name, help: help, fn: fn})
}

// ReportFailure counts a failed report request by failure kind.
func (p *Provider) ReportFailure(report, kind string) {
	if !p.cfg.metricsOn() {
		return
	}
	p.failures.add(LabelsKey(report, kind), 1)
}

// Failures returns the failure count for report and kind.
func (p *Provider) Failures(report, kind string) int64 {
	return p.failures.get(LabelsKey(report, kind))
}

// RequestCount returns how many requests were observed for the series.
func (p *Provider) RequestCount(method, route, status string) int64 {
	if h := p.durations.get(LabelsKey(method, route, status)); h != nil {
		return h.Count()
	}
	return 0
}

// ActiveRequests returns the number of in-flight requests.
func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.active)
}

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !p.cfg.metricsOn() {
				return next(c)
			}

			atomic.AddInt64(&p.active, 1)
			start := time.Now()
			err := next(c)
			duration := time.Since(start).Seconds()
			atomic.AddInt64(&p.active, -1)

			resp := c.Response()
			status := resp.Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !resp.Committed {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			p.durations.getOrCreate(LabelsKey(c.Request().Method, route, fmt.Sprintf("%d", status)), defaultDurationBuckets).
				Observe(duration)
			if resp.Size > 0 {
				p.sizes.getOrCreate(route, defaultSizeBuckets).Observe(float64(resp.Size))
			}
			return err
		}
	}
}

// PrometheusHandler serves all metrics in text exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		fmt.Fprintf(&b, "# HELP service_info Build information.\n# TYPE service_info gauge\n")
		fmt.Fprintf(&b, "service_info{service=%q,version=%q,environment=%q} 1\n\n",
			p.cfg.ServiceName, p.cfg.ServiceVersion, p.cfg.Environment)

		writeHistograms(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", p.durations.snapshot(),
			[]string{"method", "route", "status_code"}, defaultDurationBuckets)

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		writeHistograms(&b, "http_server_response_size_bytes",
			"Size of HTTP response bodies in bytes.", p.sizes.snapshot(),
			[]string{"route"}, defaultSizeBuckets)

		b.WriteString("# HELP report_failures_total Failed report requests by report and failure kind.\n")
		b.WriteString("# TYPE report_failures_total counter\n")
		failures := p.failures.snapshot()
		for _, key := range sortedKeys(failures) {
			parts := strings.SplitN(key, "|", 2)
			if len(parts) == 2 {
				fmt.Fprintf(&b, "report_failures_total{report=%q,kind=%q} %d\n", parts[0], parts[1], failures[key])
			}
		}
		b.WriteByte('\n')

		p.gaugeMu.RLock()
		gauges := append([]gaugeFunc(nil), p.gauges...)
		p.gaugeMu.RUnlock()
		for _, g := range gauges {
			fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", g.name, g.help, g.name, g.name, g.fn())
		}

		return c.String(http.StatusOK, b.String())
	}
}

func writeHistograms(b *strings.Builder, name, help string, series map[string]*histogram,
	labelNames []string, boundaries []float64) {

	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	for _, key := range sortedKeys(series) {
		values := strings.SplitN(key, "|", len(labelNames))
		if len(values) != len(labelNames) {
			continue
		}
		labels := make([]string, len(labelNames))
		for i, n := range labelNames {
			labels[i] = fmt.Sprintf("%s=%q", n, values[i])
		}
		writeSingleHistogram(b, name, strings.Join(labels, ","), series[key], boundaries)
	}
	b.WriteByte('\n')
}

func writeSingleHistogram(b *strings.Builder, name, labels string, h *histogram, boundaries []float64) {
	cum := h.cumulativeBuckets()
	total := h.Count()

	for i, boundary := range boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
