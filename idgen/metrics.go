package idgen

import (
	"context"
	"time"

	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// 指标名称
const (
	// MetricGenerated 成功生成的 ID 总数 (Counter)
	MetricGenerated = "idgen_generated_total"

	// MetricErrors 生成失败次数 (Counter)，按错误类型区分
	MetricErrors = "idgen_errors_total"

	// MetricGenerateDuration 单次生成耗时 (Histogram)
	MetricGenerateDuration = "idgen_generate_duration_seconds"

	// MetricCachedGenerators 模板缓存中的生成器数量 (Gauge)
	MetricCachedGenerators = "idgen_cached_generators"
)

const (
	labelTemplate = "template"
	labelKind     = "kind"
)

var durationBuckets = []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05}

type generatorMetrics struct {
	template  string
	generated metrics.Counter
	errors    metrics.Counter
	duration  metrics.Histogram
}

func newGeneratorMetrics(meter metrics.Meter, template string) (*generatorMetrics, error) {
	generated, err := meter.Counter(MetricGenerated, "Total number of generated ids")
	if err != nil {
		return nil, xerrors.Wrap(err, "create generated counter")
	}
	errs, err := meter.Counter(MetricErrors, "Total number of failed generations")
	if err != nil {
		return nil, xerrors.Wrap(err, "create errors counter")
	}
	duration, err := meter.Histogram(MetricGenerateDuration, "Id generation latency",
		metrics.WithUnit("s"), metrics.WithBuckets(durationBuckets))
	if err != nil {
		return nil, xerrors.Wrap(err, "create duration histogram")
	}
	return &generatorMetrics{
		template:  template,
		generated: generated,
		errors:    errs,
		duration:  duration,
	}, nil
}

func (m *generatorMetrics) observe(ctx context.Context, n int, err error, elapsed time.Duration) {
	tpl := metrics.L(labelTemplate, m.template)
	m.duration.Record(ctx, elapsed.Seconds(), tpl)
	if n > 0 {
		m.generated.Add(ctx, float64(n), tpl)
	}
	if err != nil {
		m.errors.Inc(ctx, tpl, metrics.L(labelKind, ErrorKind(err)))
	}
}

// ErrorKind 返回错误的分类，用于指标标签与 HTTP 状态码映射
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case xerrors.Is(err, ErrClockRegression):
		return CodeClockRegression
	case xerrors.Is(err, ErrSequenceOverflow):
		return CodeSequenceOverflow
	case xerrors.Is(err, ErrMalformedSpec):
		return CodeMalformedSpec
	case xerrors.Is(err, ErrUnknownComponentType):
		return CodeUnknownComponentType
	case xerrors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case xerrors.Is(err, context.Canceled), xerrors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
