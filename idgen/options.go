package idgen

import (
	"time"

	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/metrics"
)

// Option Compile / Builtin / NewCache / NewSet 的选项函数
type Option func(*options)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	delims   Delimiters
	name     string
	redis    connector.RedisConnector
	etcd     connector.EtcdConnector
	db       connector.TypedConnector[*gorm.DB]
	location *time.Location
	clock    func() int64
}

// WithLogger 设置 Logger，组件会自动派生 component=idgen 字段
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.With(clog.String("component", "idgen"))
		}
	}
}

// WithMeter 设置 Meter，用于记录生成次数、错误与耗时
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithDelimiters 自定义模板定界符与转义符
func WithDelimiters(open, close, escape string) Option {
	return func(o *options) {
		o.delims = Delimiters{Open: open, Close: close, Escape: escape}
	}
}

// WithName 设置模板名称，作为指标的 template 标签；默认使用模板字符串本身
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithRedisConnector 注入 Redis 连接器，供 Seq 组件与 Snowflake=redis 使用
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redis = conn
	}
}

// WithEtcdConnector 注入 Etcd 连接器，供 Snowflake=etcd 使用
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcd = conn
	}
}

// WithDB 注入 GORM 连接器（MySQL 或 SQLite），供 Segment 组件使用
func WithDB(conn connector.TypedConnector[*gorm.DB]) Option {
	return func(o *options) {
		o.db = conn
	}
}

// WithLocation 设置时间格式化使用的时区，默认 time.Local
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithClock 替换毫秒时钟，主要用于测试
func WithClock(clock func() int64) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		delims:   DefaultDelimiters,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	return o
}
