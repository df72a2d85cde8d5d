package idgen

import (
	"context"
	"sync"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// DefaultCacheSize 模板缓存默认容量
const DefaultCacheSize = 1024

// AdhocTemplateName 缓存中所有模板共用的指标 template 标签
const AdhocTemplateName = "adhoc"

// Cache 以模板字符串为键缓存编译结果
//
// 同一模板只编译一次，后续请求复用同一个 Generator，因此 TimeCount 等有状态组件
// 在该模板的所有调用之间共享。被淘汰的 Generator 会被关闭。
// 模板字符串可能来自客户端，指标统一记在 AdhocTemplateName 标签下。
type Cache struct {
	reg    *Registry
	opts   []Option
	logger clog.Logger
	size   metrics.Gauge

	mu    sync.Mutex
	cache *otter.Cache[string, *Generator]
}

// NewCache 创建模板缓存，capacity <= 0 时使用 DefaultCacheSize
func NewCache(reg *Registry, capacity int, opts ...Option) (*Cache, error) {
	if reg == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "registry is nil")
	}
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	o := newOptions(opts...)

	gauge, err := o.meter.Gauge(MetricCachedGenerators, "Number of compiled templates held in cache")
	if err != nil {
		return nil, xerrors.Wrap(err, "create cache gauge")
	}

	c := &Cache{
		reg:    reg,
		opts:   append([]Option{WithName(AdhocTemplateName)}, opts...),
		logger: o.logger,
		size:   gauge,
	}
	cache, err := otter.New(&otter.Options[string, *Generator]{
		MaximumSize:   capacity,
		StatsRecorder: stats.NewCounter(),
		OnDeletion: func(e otter.DeletionEvent[string, *Generator]) {
			if e.Cause == otter.CauseReplacement {
				return
			}
			if err := e.Value.Close(); err != nil {
				c.logger.Warn("close evicted generator failed", clog.String("spec", e.Key), clog.Error(err))
			}
			c.size.Dec(context.Background())
		},
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "create template cache")
	}
	c.cache = cache
	return c, nil
}

// Get 返回模板对应的 Generator，首次访问时编译
func (c *Cache) Get(spec string) (*Generator, error) {
	if g, ok := c.cache.GetIfPresent(spec); ok {
		return g, nil
	}

	// 编译可能占用外部资源（WorkerID），串行化以保证同一模板只编译一次
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.cache.GetIfPresent(spec); ok {
		return g, nil
	}
	g, err := Compile(spec, c.reg, c.opts...)
	if err != nil {
		return nil, err
	}
	c.cache.Set(spec, g)
	c.size.Inc(context.Background())
	return g, nil
}

// Generate 便捷方法：编译（或复用）模板并生成 count 个 ID
//
// 取到的 Generator 恰好被淘汰关闭时会重新编译一次。
func (c *Cache) Generate(ctx context.Context, spec string, count int) ([]string, error) {
	for attempt := 0; ; attempt++ {
		g, err := c.Get(spec)
		if err != nil {
			return nil, err
		}
		ids, err := g.GenerateBatch(ctx, count)
		if xerrors.Is(err, ErrClosed) && attempt == 0 {
			if cur, ok := c.cache.GetIfPresent(spec); ok && cur == g {
				c.cache.Invalidate(spec)
			}
			continue
		}
		return ids, err
	}
}

// Stats 返回缓存命中统计
func (c *Cache) Stats() stats.Stats {
	return c.cache.Stats()
}

// Len 当前缓存的模板数量
func (c *Cache) Len() int {
	return c.cache.EstimatedSize()
}

// Close 清空缓存并关闭所有 Generator
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.InvalidateAll()
	c.cache.StopAllGoroutines()
	return nil
}
