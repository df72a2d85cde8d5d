package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// ============================================================================
// 工厂函数
// ============================================================================

// New 创建 Meter 实例
//
// 每个 Meter 使用独立的 Prometheus Registry，可通过 Handler 挂载到已有的 HTTP 路由上；
// cfg.Port > 0 时额外启动独立的指标 HTTP 服务器。
func New(cfg *Config, opts ...Option) (Meter, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "metrics_config_nil")
	}

	if !cfg.Enabled {
		return Discard(), nil
	}
	cfg.setDefaults()
	if !strings.HasPrefix(cfg.Path, "/") {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "metrics_path_invalid")
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	m := &meterImpl{
		meter:    mp.Meter("idforge"),
		provider: mp,
		registry: registry,
		config:   cfg,
		logger:   o.logger,
	}

	if cfg.Port > 0 {
		m.startServer()
	}

	return m, nil
}

// Must 类似 New，但出错时 panic，仅用于初始化阶段
func Must(cfg *Config, opts ...Option) Meter {
	m, err := New(cfg, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create metrics: %v", err))
	}
	return m
}

// Discard 返回 noop Meter
func Discard() Meter {
	return &noopMeter{}
}

// Handler 返回暴露 Prometheus 格式指标的 http.Handler，noop Meter 返回 404
func Handler(m Meter) http.Handler {
	if impl, ok := m.(*meterImpl); ok {
		return promhttp.HandlerFor(impl.registry, promhttp.HandlerOpts{})
	}
	return http.NotFoundHandler()
}

// ============================================================================
// Meter 实现
// ============================================================================

type meterImpl struct {
	meter    metric.Meter
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry
	config   *Config
	logger   clog.Logger

	mu     sync.Mutex
	server *http.Server
}

func (m *meterImpl) startServer() {
	addr := fmt.Sprintf(":%d", m.config.Port)
	mux := http.NewServeMux()
	mux.Handle(m.config.Path, Handler(m))

	m.mu.Lock()
	m.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := m.server
	m.mu.Unlock()

	go func() {
		m.logger.Info("starting prometheus metrics server",
			clog.String("addr", addr),
			clog.String("path", m.config.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("prometheus server error", clog.Error(err))
		}
	}()
}

// Counter 创建累加器
func (m *meterImpl) Counter(name string, desc string, opts ...MetricOption) (Counter, error) {
	o := collectOptions(opts)
	otelOpts := []metric.Float64CounterOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	c, err := m.meter.Float64Counter(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create counter %s", name)
	}
	return &counterImpl{c: c}, nil
}

// Gauge 创建仪表盘
func (m *meterImpl) Gauge(name string, desc string, opts ...MetricOption) (Gauge, error) {
	o := collectOptions(opts)
	otelOpts := []metric.Float64GaugeOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	g, err := m.meter.Float64Gauge(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create gauge %s", name)
	}
	return &gaugeImpl{
		g:      g,
		values: make(map[string]float64),
	}, nil
}

// Histogram 创建直方图
func (m *meterImpl) Histogram(name string, desc string, opts ...MetricOption) (Histogram, error) {
	o := collectOptions(opts)
	otelOpts := []metric.Float64HistogramOption{metric.WithDescription(desc)}
	if o.Unit != "" {
		otelOpts = append(otelOpts, metric.WithUnit(o.Unit))
	}
	if len(o.Buckets) > 0 {
		otelOpts = append(otelOpts, metric.WithExplicitBucketBoundaries(o.Buckets...))
	}

	h, err := m.meter.Float64Histogram(name, otelOpts...)
	if err != nil {
		return nil, xerrors.Wrapf(err, "create histogram %s", name)
	}
	return &histogramImpl{h: h}, nil
}

// Shutdown 关闭 HTTP 服务器并刷新所有指标
func (m *meterImpl) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	srv := m.server
	m.server = nil
	m.mu.Unlock()

	var serverErr error
	if srv != nil {
		serverErr = srv.Shutdown(ctx)
	}
	return xerrors.Combine(serverErr, m.provider.Shutdown(ctx))
}

func collectOptions(opts []MetricOption) *MetricOptions {
	o := &MetricOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ============================================================================
// Counter / Gauge / Histogram 实现
// ============================================================================

type counterImpl struct {
	c metric.Float64Counter
}

func (c *counterImpl) Inc(ctx context.Context, labels ...Label) {
	c.c.Add(ctx, 1, metric.WithAttributes(toAttributes(labels)...))
}

func (c *counterImpl) Add(ctx context.Context, val float64, labels ...Label) {
	c.c.Add(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

// gaugeImpl 在本地记录每组标签的当前值，以支持 Inc/Dec
type gaugeImpl struct {
	g      metric.Float64Gauge
	values map[string]float64
	mu     sync.Mutex
}

func (g *gaugeImpl) Set(ctx context.Context, val float64, labels ...Label) {
	g.mu.Lock()
	g.values[labelKey(labels)] = val
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

func (g *gaugeImpl) Inc(ctx context.Context, labels ...Label) {
	g.add(ctx, 1, labels)
}

func (g *gaugeImpl) Dec(ctx context.Context, labels ...Label) {
	g.add(ctx, -1, labels)
}

func (g *gaugeImpl) add(ctx context.Context, delta float64, labels []Label) {
	key := labelKey(labels)
	g.mu.Lock()
	g.values[key] += delta
	val := g.values[key]
	g.mu.Unlock()
	g.g.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

type histogramImpl struct {
	h metric.Float64Histogram
}

func (h *histogramImpl) Record(ctx context.Context, val float64, labels ...Label) {
	h.h.Record(ctx, val, metric.WithAttributes(toAttributes(labels)...))
}

// ============================================================================
// noop 实现（当 Metrics 禁用时使用）
// ============================================================================

type noopMeter struct{}

func (n *noopMeter) Counter(string, string, ...MetricOption) (Counter, error) {
	return noopInstrument{}, nil
}

func (n *noopMeter) Gauge(string, string, ...MetricOption) (Gauge, error) {
	return noopInstrument{}, nil
}

func (n *noopMeter) Histogram(string, string, ...MetricOption) (Histogram, error) {
	return noopInstrument{}, nil
}

func (n *noopMeter) Shutdown(context.Context) error {
	return nil
}

type noopInstrument struct{}

func (noopInstrument) Inc(context.Context, ...Label)             {}
func (noopInstrument) Dec(context.Context, ...Label)             {}
func (noopInstrument) Add(context.Context, float64, ...Label)    {}
func (noopInstrument) Set(context.Context, float64, ...Label)    {}
func (noopInstrument) Record(context.Context, float64, ...Label) {}

// ============================================================================
// 辅助函数
// ============================================================================

func toAttributes(labels []Label) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}

// labelKey 根据标签生成唯一的键
func labelKey(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = l.Key + "=" + l.Value
	}
	return strings.Join(parts, "|")
}
