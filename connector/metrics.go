package connector

import (
	"context"

	"github.com/ceyewan/idforge/metrics"
)

const (
	MetricConnectAttempts = "connector_connect_attempts_total"
	MetricConnectFailures = "connector_connect_failures_total"
	MetricConnected       = "connector_connected"
)

// connMetrics 所有连接器共享的连接指标，标签为 connector(类型) 与 name(实例)
type connMetrics struct {
	attempts  metrics.Counter
	failures  metrics.Counter
	connected metrics.Gauge
	labels    []metrics.Label
}

func newConnMetrics(meter metrics.Meter, kind, name string) *connMetrics {
	m := &connMetrics{
		labels: []metrics.Label{metrics.L("connector", kind), metrics.L("name", name)},
	}
	// 指标创建失败不影响连接器本身，回退到 noop
	noop := metrics.Discard()
	var err error
	if m.attempts, err = meter.Counter(MetricConnectAttempts, "Total number of connect attempts"); err != nil {
		m.attempts, _ = noop.Counter(MetricConnectAttempts, "")
	}
	if m.failures, err = meter.Counter(MetricConnectFailures, "Total number of failed connect attempts"); err != nil {
		m.failures, _ = noop.Counter(MetricConnectFailures, "")
	}
	if m.connected, err = meter.Gauge(MetricConnected, "1 if the connector is connected"); err != nil {
		m.connected, _ = noop.Gauge(MetricConnected, "")
	}
	return m
}

func (m *connMetrics) observeConnect(ctx context.Context, err error) {
	m.attempts.Inc(ctx, m.labels...)
	if err != nil {
		m.failures.Inc(ctx, m.labels...)
		return
	}
	m.connected.Set(ctx, 1, m.labels...)
}

func (m *connMetrics) observeClose() {
	m.connected.Set(context.Background(), 0, m.labels...)
}
