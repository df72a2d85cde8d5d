package connector

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
)

// NewMySQL 创建 MySQL 连接器，实际连接在 Connect 时建立
func NewMySQL(cfg *MySQLConfig, opts ...Option) (MySQLConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := newOptions(opts)
	return &gormConnector{
		kind:    "mysql",
		name:    cfg.Name,
		logger:  opt.logger.With(clog.String("connector", "mysql"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(opt.meter, "mysql", cfg.Name),
		logSQL:  cfg.LogSQL,
		open: func() gorm.Dialector {
			return mysql.Open(cfg.dsn())
		},
		configure: func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
			return nil
		},
	}, nil
}
