package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

const (
	MetricHTTPServerRequestTotal    = "http_server_requests_total"
	MetricHTTPServerDurationSeconds = "http_server_request_duration_seconds"
	MetricHTTPServerActiveRequests  = "http_server_active_requests"
)

var defaultHTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// HTTPServerMetricsConfig HTTP 服务器指标配置
type HTTPServerMetricsConfig struct {
	Service             string
	RequestTotalName    string
	RequestDurationName string
	ActiveRequestsName  string
	DurationBuckets     []float64
	StaticLabels        []Label

	// SkipRoutes 不记录的路由模板，如 /metrics、/healthz 这类探测请求
	SkipRoutes []string
}

// DefaultHTTPServerMetricsConfig 返回默认的 HTTP 服务器指标配置
func DefaultHTTPServerMetricsConfig(service string) *HTTPServerMetricsConfig {
	return &HTTPServerMetricsConfig{
		Service:             service,
		RequestTotalName:    MetricHTTPServerRequestTotal,
		RequestDurationName: MetricHTTPServerDurationSeconds,
		ActiveRequestsName:  MetricHTTPServerActiveRequests,
		DurationBuckets:     defaultHTTPDurationBuckets,
		SkipRoutes:          []string{"/metrics", "/healthz"},
	}
}

// HTTPServerMetrics 请求数、耗时与在途请求数
type HTTPServerMetrics struct {
	service      string
	requestTotal Counter
	duration     Histogram
	active       Gauge
	staticLabels []Label
	skip         map[string]struct{}
}

// NewHTTPServerMetrics 创建可重用的 HTTP 服务器指标
func NewHTTPServerMetrics(m Meter, cfg *HTTPServerMetricsConfig) (*HTTPServerMetrics, error) {
	if m == nil {
		return nil, xerrors.New("meter is nil")
	}
	if cfg == nil {
		return nil, xerrors.New("config is nil")
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = "unknown"
	}

	requestTotalName := strings.TrimSpace(cfg.RequestTotalName)
	if requestTotalName == "" {
		requestTotalName = MetricHTTPServerRequestTotal
	}

	requestDurationName := strings.TrimSpace(cfg.RequestDurationName)
	if requestDurationName == "" {
		requestDurationName = MetricHTTPServerDurationSeconds
	}

	counter, err := m.Counter(requestTotalName, "Total number of HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request counter")
	}

	histogramOpts := []MetricOption{WithUnit("s")}
	if len(cfg.DurationBuckets) > 0 {
		histogramOpts = append(histogramOpts, WithBuckets(cfg.DurationBuckets))
	}
	duration, err := m.Histogram(requestDurationName, "HTTP request duration in seconds.", histogramOpts...)
	if err != nil {
		return nil, xerrors.Wrap(err, "create http request duration histogram")
	}

	activeName := strings.TrimSpace(cfg.ActiveRequestsName)
	if activeName == "" {
		activeName = MetricHTTPServerActiveRequests
	}
	active, err := m.Gauge(activeName, "Number of in-flight HTTP requests.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create http active requests gauge")
	}

	static := make([]Label, len(cfg.StaticLabels))
	copy(static, cfg.StaticLabels)

	skip := make(map[string]struct{}, len(cfg.SkipRoutes))
	for _, route := range cfg.SkipRoutes {
		skip[route] = struct{}{}
	}

	return &HTTPServerMetrics{
		service:      service,
		requestTotal: counter,
		duration:     duration,
		active:       active,
		staticLabels: static,
		skip:         skip,
	}, nil
}

// Skip 报告该路由是否被排除在指标之外
func (m *HTTPServerMetrics) Skip(route string) bool {
	if m == nil {
		return true
	}
	_, ok := m.skip[route]
	return ok
}

// Begin 在途请求数加一，返回的函数在请求结束时调用
func (m *HTTPServerMetrics) Begin(ctx context.Context, method string) func() {
	if m == nil || m.active == nil {
		return func() {}
	}
	labels := []Label{L(LabelService, m.service), L(LabelMethod, normalizeMethod(method))}
	m.active.Inc(ctx, labels...)
	return func() { m.active.Dec(ctx, labels...) }
}

// Observe 记录 HTTP 请求 RED 指标
func (m *HTTPServerMetrics) Observe(ctx context.Context, method string, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	safeMethod := normalizeMethod(method)

	safeRoute := strings.TrimSpace(route)
	if safeRoute == "" {
		safeRoute = UnknownRoute
	}

	labels := make([]Label, 0, len(m.staticLabels)+6)
	labels = append(labels, m.staticLabels...)
	labels = append(labels,
		L(LabelService, m.service),
		L(LabelOperation, OperationHTTPServer),
		L(LabelMethod, safeMethod),
		L(LabelRoute, safeRoute),
		L(LabelStatusClass, HTTPStatusClass(status)),
		L(LabelOutcome, HTTPOutcome(status)),
	)

	m.requestTotal.Inc(ctx, labels...)
	m.duration.Record(ctx, duration.Seconds(), labels...)
}

func normalizeMethod(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return http.MethodGet
	}
	return m
}
