// Package idgen 基于模板生成唯一 ID。
//
// 模板由字面文本与占位符交替组成，占位符形如 {name:Type=arg1,arg2}。
// Compile 将模板一次性编译为组件流水线，之后 Generate 按顺序执行各组件并拼接结果：
//
//	gen, err := idgen.Compile("ORD-{TimeCount=20060102150405,1000,%s%03d}", idgen.Builtin())
//	if err != nil {
//	    return err
//	}
//	defer gen.Close()
//
//	id, err := gen.Generate() // ORD-20240101120000000
//
// 内置组件：
//   - TimeCount: 毫秒时间戳 + 毫秒内序列号，同一实例内严格唯一
//   - Const / Date / Ref: 常量、日期与别名引用
//   - UUID / ULID / KSUID / NanoID / CUID2: 随机或时间有序的标识
//   - Snowflake / Seq / Segment: 依赖 Redis、Etcd 或数据库的分布式组件
//
// 错误处理：
//   - 模板错误（ErrMalformedSpec、ErrUnknownComponentType、ErrInvalidArgument）在 Compile 阶段返回
//   - 运行时错误（ErrClockRegression、ErrSequenceOverflow）原样返回，不重试，生成器保持可用
//
// Generator 可并发使用，只有计数类组件在各自实例内加锁。
package idgen

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

// Generator 编译后的模板
type Generator struct {
	spec       string
	components []Component
	names      map[string]int
	logger     clog.Logger
	metrics    *generatorMetrics
	closed     atomic.Bool
}

// Compile 解析并编译模板
//
// 参数:
//   - spec: 模板字符串
//   - reg: 组件注册表，为 nil 时使用 Builtin(opts...)
//   - opts: 可选参数 (Logger, Meter, Delimiters, Name ...)
func Compile(spec string, reg *Registry, opts ...Option) (*Generator, error) {
	o := newOptions(opts...)
	if reg == nil {
		reg = Builtin(opts...)
	}

	nodes, err := ParseWith(spec, o.delims)
	if err != nil {
		o.logger.Warn("parse template failed", clog.String("spec", spec), clog.Error(err))
		return nil, err
	}

	c, err := compile(nodes, reg, o.delims.Escape)
	if err != nil {
		o.logger.Warn("compile template failed", clog.String("spec", spec), clog.Error(err))
		return nil, err
	}

	name := o.name
	if name == "" {
		name = spec
	}
	m, err := newGeneratorMetrics(o.meter, name)
	if err != nil {
		_ = closeComponents(c.components)
		return nil, err
	}

	o.logger.Debug("template compiled",
		clog.String("template", name),
		clog.Int("components", len(c.components)),
	)

	return &Generator{
		spec:       spec,
		components: c.components,
		names:      c.names,
		logger:     o.logger,
		metrics:    m,
	}, nil
}

// MustCompile 同 Compile，失败时 panic，适合包级变量初始化
func MustCompile(spec string, reg *Registry, opts ...Option) *Generator {
	return xerrors.Must(Compile(spec, reg, opts...))
}

// Generate 生成一个 ID
func (g *Generator) Generate() (string, error) {
	return g.GenerateContext(context.Background())
}

// GenerateContext 生成一个 ID，ctx 传递给需要访问外部存储的组件
//
// 组件错误原样返回，不做重试；生成器在出错后仍可继续使用。
func (g *Generator) GenerateContext(ctx context.Context) (string, error) {
	start := time.Now()
	id, err := g.generate(ctx)
	n := 1
	if err != nil {
		n = 0
		g.logger.WarnContext(ctx, "generate id failed",
			clog.String("template", g.metrics.template),
			clog.ErrorWithCode(err, ErrorKind(err)),
		)
	}
	g.metrics.observe(ctx, n, err, time.Since(start))
	return id, err
}

func (g *Generator) generate(ctx context.Context) (string, error) {
	if g.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	gc := newGenerationContext(ctx, len(g.components), g.names)
	for _, c := range g.components {
		v, err := c.Generate(gc)
		if err != nil {
			return "", err
		}
		gc.record(v)
	}
	return Join(gc.values), nil
}

// GenerateBatch 顺序生成 n 个 ID，遇到第一个错误即停止并返回已生成的部分
func (g *Generator) GenerateBatch(ctx context.Context, n int) (ids []string, err error) {
	if n <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidArgument, "batch size must be positive, got %d", n)
	}
	ctx, span := trace.Start(ctx, "idgen.generate_batch",
		attribute.String("idgen.template", g.metrics.template),
		attribute.Int("idgen.count", n),
	)
	defer func() { trace.End(span, err) }()

	ids = make([]string, 0, n)
	for range n {
		id, err := g.GenerateContext(ctx)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Spec 返回原始模板字符串
func (g *Generator) Spec() string {
	return g.spec
}

// Len 返回组件数量
func (g *Generator) Len() int {
	return len(g.components)
}

// Close 释放组件持有的资源（如 WorkerID 租约），可重复调用
func (g *Generator) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	return closeComponents(g.components)
}
