package connector

import (
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
)

// NewSQLite 创建 SQLite 连接器，实际连接在 Connect 时建立
//
// 内存数据库只在单个连接内可见，因此会把连接池限制为 1。
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLiteConnector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := newOptions(opts)
	return &gormConnector{
		kind:    "sqlite",
		name:    cfg.Name,
		logger:  opt.logger.With(clog.String("connector", "sqlite"), clog.String("name", cfg.Name)),
		metrics: newConnMetrics(opt.meter, "sqlite", cfg.Name),
		logSQL:  cfg.LogSQL,
		open: func() gorm.Dialector {
			return sqlite.Open(cfg.Path)
		},
		configure: func(db *gorm.DB) error {
			if !strings.Contains(cfg.Path, ":memory:") {
				return nil
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			sqlDB.SetMaxOpenConns(1)
			return nil
		},
	}, nil
}
