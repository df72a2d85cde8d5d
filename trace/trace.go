// Package trace 初始化全局 OpenTelemetry TracerProvider，并提供 idforge 各组件共用的 span 工具。
//
//	shutdown, _ := trace.Init(&trace.Config{Enabled: true, Endpoint: "tempo:4317", Sampler: 0.1})
//	defer shutdown(context.Background())
//
//	ctx, span := trace.Start(ctx, "idgen.generate", attribute.String("idgen.template", name))
//	defer span.End()
package trace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/idforge/xerrors"
)

// InstrumentationName idforge 组件使用的 Tracer 名称
const InstrumentationName = "github.com/ceyewan/idforge"

// Init 初始化全局 TracerProvider 与 W3C 传播器，返回的 shutdown 需在退出时调用以刷新剩余数据。
// cfg.Enabled 为 false 时安装不导出的 Provider，仍然生成 TraceID 供日志关联。
func Init(cfg *Config) (func(context.Context) error, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "trace config is required")
	}
	cfg.setDefaults()
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "create resource")
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.Enabled {
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithTimeout(5 * time.Second),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, xerrors.Wrap(err, "create otlp exporter")
		}

		tpOpts = append(tpOpts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Sampler))))
		if cfg.Batcher == "simple" {
			tpOpts = append(tpOpts, sdktrace.WithSyncer(exporter))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
		}
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func validateConfig(cfg *Config) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Endpoint == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "endpoint is required")
	}
	if cfg.Sampler < 0 || cfg.Sampler > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "sampler must be between 0 and 1, got %v", cfg.Sampler)
	}
	if cfg.Batcher != "batch" && cfg.Batcher != "simple" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "batcher must be \"batch\" or \"simple\", got %q", cfg.Batcher)
	}
	return nil
}

// Start 使用全局 TracerProvider 开启一个 internal span
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return otel.Tracer(InstrumentationName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// End 根据 err 设置 span 状态后结束 span
func End(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
