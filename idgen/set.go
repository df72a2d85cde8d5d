package idgen

import (
	"context"
	"sort"
	"time"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// Config 命名模板集合配置，通常从配置文件的 idgen 节点加载
//
//	idgen:
//	  location: Asia/Shanghai
//	  cache_size: 256
//	  templates:
//	    order: "ORD{TimeCount=20060102150405,1000,%s%03d}"
//	    trace: "{UUID=v7,compact}"
type Config struct {
	// Templates 名称到模板字符串的映射
	Templates map[string]string `mapstructure:"templates" yaml:"templates"`

	// Location 时间格式化使用的时区名称，默认本地时区
	Location string `mapstructure:"location" yaml:"location"`

	// CacheSize 临时模板缓存容量，默认 DefaultCacheSize
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

func (c *Config) setDefaults() {
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
}

func (c *Config) validate() error {
	for name, spec := range c.Templates {
		if name == "" {
			return xerrors.Wrapf(ErrInvalidArgument, "empty template name for %q", spec)
		}
	}
	return nil
}

// Set 启动时一次性编译的命名模板集合，附带一个临时模板缓存
type Set struct {
	generators map[string]*Generator
	cache      *Cache
	logger     clog.Logger
}

// NewSet 编译 cfg.Templates 中的全部模板，任一失败则释放已编译的模板并返回错误
func NewSet(cfg *Config, reg *Registry, opts ...Option) (_ *Set, err error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrInvalidArgument, "idgen config is nil")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Location != "" {
		loc, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, xerrors.Wrapf(ErrInvalidArgument, "location %q: %v", cfg.Location, err)
		}
		opts = append(opts, WithLocation(loc))
	}
	if reg == nil {
		reg = Builtin(opts...)
	}
	o := newOptions(opts...)

	s := &Set{
		generators: make(map[string]*Generator, len(cfg.Templates)),
		logger:     o.logger,
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	for _, name := range sortedKeys(cfg.Templates) {
		g, err := Compile(cfg.Templates[name], reg, append(opts, WithName(name))...)
		if err != nil {
			return nil, xerrors.Wrapf(err, "template %q", name)
		}
		s.generators[name] = g
	}

	if s.cache, err = NewCache(Local(opts...), cfg.CacheSize, opts...); err != nil {
		return nil, err
	}

	s.logger.Info("template set compiled", clog.Int("templates", len(s.generators)))
	return s, nil
}

// Get 按名称返回 Generator
func (s *Set) Get(name string) (*Generator, error) {
	g, ok := s.generators[name]
	if !ok {
		return nil, xerrors.Wrapf(ErrTemplateNotFound, "%q", name)
	}
	return g, nil
}

// Generate 使用命名模板生成一个 ID
func (s *Set) Generate(ctx context.Context, name string) (string, error) {
	g, err := s.Get(name)
	if err != nil {
		return "", err
	}
	return g.GenerateContext(ctx)
}

// GenerateBatch 使用命名模板生成 n 个 ID
func (s *Set) GenerateBatch(ctx context.Context, name string, n int) ([]string, error) {
	g, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return g.GenerateBatch(ctx, n)
}

// GenerateSpec 使用临时模板生成 n 个 ID，模板编译结果会被缓存
//
// 临时模板只能使用 Local 注册表中的类型，与 NewSet 传入的 reg 无关。
func (s *Set) GenerateSpec(ctx context.Context, spec string, n int) ([]string, error) {
	return s.cache.Generate(ctx, spec, n)
}

// Names 返回全部模板名称，按字典序排列
func (s *Set) Names() []string {
	return sortedKeys(s.generators)
}

// Close 关闭全部 Generator 与临时模板缓存
func (s *Set) Close() error {
	var errs []error
	for _, g := range s.generators {
		errs = append(errs, g.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	return xerrors.Combine(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
