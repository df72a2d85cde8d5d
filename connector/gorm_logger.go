package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowSQLThreshold 超过该耗时的 SQL 以 Warn 级别记录
const slowSQLThreshold = 200 * time.Millisecond

// gormLogger 将 GORM 日志适配到 clog
type gormLogger struct {
	logger clog.Logger
	level  logger.LogLevel
}

// newGormLogger silent 为 true 时只记录错误
func newGormLogger(log clog.Logger, silent bool) logger.Interface {
	level := logger.Info
	if silent {
		level = logger.Error
	}
	return &gormLogger{
		logger: log,
		level:  level,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.level = level
	return &newLogger
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace 记录 SQL 执行日志，号段分配的 SQL 频率很低，全部记录在 Debug 级别
func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !xerrors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		l.logger.ErrorContext(ctx, "sql error",
			clog.Duration("duration", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
			clog.Error(err),
		)
	case elapsed > slowSQLThreshold && l.level >= logger.Warn:
		l.logger.WarnContext(ctx, "slow sql",
			clog.Duration("duration", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
		)
	case l.level >= logger.Info:
		l.logger.DebugContext(ctx, "sql",
			clog.Duration("duration", elapsed),
			clog.String("sql", sql),
			clog.Int64("rows", rows),
		)
	}
}
