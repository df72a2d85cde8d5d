package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// healthCheckKey 探测用的 key，不存在时 Get 也会成功返回
const healthCheckKey = "idforge/health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool

	mu     sync.RWMutex
	client *clientv3.Client
}

// NewEtcd 创建 Etcd 连接器，实际连接在 Connect 时建立
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := newOptions(opts)
	return &etcdConnector{
		cfg:     cfg,
		logger:  opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(opt.meter, "etcd", cfg.Name),
	}, nil
}

// Connect 建立连接
func (c *etcdConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}

	c.logger.Info("attempting to connect to etcd", clog.Any("endpoints", c.cfg.Endpoints))

	clientConfig := clientv3.Config{
		Endpoints:            c.cfg.Endpoints,
		DialTimeout:          c.cfg.DialTimeout,
		DialKeepAliveTime:    c.cfg.KeepAliveTime,
		DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
		Context:              context.WithoutCancel(ctx),
	}
	if c.cfg.Username != "" && c.cfg.Password != "" {
		clientConfig.Username = c.cfg.Username
		clientConfig.Password = c.cfg.Password
	}

	client, err := clientv3.New(clientConfig)
	if err == nil {
		err = probeEtcd(ctx, client, c.cfg)
		if err != nil {
			_ = client.Close()
		}
	}
	c.metrics.observeConnect(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	c.client = client
	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

func probeEtcd(ctx context.Context, client *clientv3.Client, cfg *EtcdConfig) error {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	_, err := client.Get(probeCtx, healthCheckKey)
	return err
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}

	c.logger.Info("closing etcd connection")
	err := c.client.Close()
	c.client = nil
	c.metrics.observeClose()
	if err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	client := c.GetClient()
	if client == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "etcd connector[%s]", c.cfg.Name)
	}

	if err := probeEtcd(ctx, client, c.cfg); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

// GetClient 返回 Etcd 客户端
func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
