// Package server 是 idforged 的 HTTP 接入层，把 idgen.Set 暴露为 REST 接口。
//
//	GET  /v1/ids/:name?count=N        命名模板
//	POST /v1/ids {"template","count"} 临时模板，编译结果经 idgen.Cache 复用
//	GET  /healthz
//	GET  /metrics                     Prometheus 指标（Meter 启用时）
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

const serviceName = "idforged"

// Config HTTP 服务配置
//
//	server:
//	  addr: ":8080"
//	  max_count: 1000
//	  shutdown_timeout: 10s
//	  limit:
//	    rate: 200
//	    burst: 400
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	MaxCount        int           `mapstructure:"max_count" yaml:"max_count"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Limit           LimitConfig   `mapstructure:"limit" yaml:"limit"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.MaxCount <= 0 {
		c.MaxCount = 1000
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	c.Limit.setDefaults()
}

// Option 服务选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.With(clog.String("component", "server"))
		}
	}
}

// WithMeter 设置 Meter，同时启用 /metrics 与 HTTP RED 指标
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// Server idforged HTTP 服务
type Server struct {
	cfg     Config
	set     *idgen.Set
	logger  clog.Logger
	limiter *ipLimiter
	engine  *gin.Engine
	http    *http.Server
}

// New 创建 Server，set 的生命周期由调用方管理
func New(cfg *Config, set *idgen.Set, opts ...Option) (*Server, error) {
	if set == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "server: idgen set is nil")
	}
	var c Config
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(o.meter, metrics.DefaultHTTPServerMetricsConfig(serviceName))
	if err != nil {
		return nil, xerrors.Wrap(err, "server: http metrics")
	}

	gin.SetMode(c.Mode)
	s := &Server{
		cfg:    c,
		set:    set,
		logger: o.logger,
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery(), trace.GinMiddleware(serviceName), metrics.GinHTTPMiddleware(httpMetrics))
	s.engine.GET("/healthz", s.healthz)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler(o.meter)))

	v1 := s.engine.Group("/v1")
	if c.Limit.Rate > 0 {
		s.limiter = newIPLimiter(c.Limit, s.logger)
		v1.Use(s.limiter.middleware())
	}
	v1.GET("/ids/:name", s.generateNamed)
	v1.POST("/ids", s.generateSpec)

	s.http = &http.Server{
		Addr:         c.Addr,
		Handler:      s.engine,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
	return s, nil
}

// Handler 返回路由，便于测试与嵌入
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run 监听并服务，ctx 结束后在 ShutdownTimeout 内优雅关闭
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return xerrors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 Listener 上服务
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server started", clog.String("addr", ln.Addr().String()))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.stopLimiter()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(shutdownCtx)
	s.stopLimiter()
	if err != nil {
		return xerrors.Wrap(err, "http shutdown")
	}
	s.logger.Info("http server stopped")
	return nil
}

// Close 立即关闭服务
func (s *Server) Close() error {
	s.stopLimiter()
	return s.http.Close()
}

func (s *Server) stopLimiter() {
	if s.limiter != nil {
		s.limiter.stop()
	}
}
