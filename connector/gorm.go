package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// gormConnector MySQL 与 SQLite 共用的 GORM 连接管理
type gormConnector struct {
	kind    string
	name    string
	logger  clog.Logger
	metrics *connMetrics
	healthy atomic.Bool

	open      func() gorm.Dialector
	logSQL    bool
	configure func(db *gorm.DB) error

	mu sync.RWMutex
	db *gorm.DB
}

// Connect 建立连接
func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("attempting to connect to " + c.kind)

	db, err := c.connect(ctx)
	c.metrics.observeConnect(ctx, err)
	if err != nil {
		c.logger.Error("failed to connect to "+c.kind, clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: %v", c.kind, c.name, err)
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("successfully connected to " + c.kind)
	return nil
}

func (c *gormConnector) connect(ctx context.Context) (*gorm.DB, error) {
	db, err := gorm.Open(c.open(), &gorm.Config{
		Logger: newGormLogger(c.logger, !c.logSQL),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(c.name))); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if c.configure != nil {
		if err := c.configure(db); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close 关闭连接
func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	c.logger.Info("closing " + c.kind + " connection")
	db := c.db
	c.db = nil
	c.metrics.observeClose()

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close "+c.kind+" connection", clog.Error(err))
		return err
	}
	return nil
}

// HealthCheck 检查连接健康状态
func (c *gormConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "%s connector[%s]", c.kind, c.name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn(c.kind+" health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "%s connector[%s]: %v", c.kind, c.name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *gormConnector) Name() string {
	return c.name
}

// GetClient 返回 GORM 客户端
func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
