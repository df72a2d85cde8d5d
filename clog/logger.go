// Package clog 为 idforge 提供基于 slog 的结构化日志组件。
// 支持 Context 字段提取和命名空间管理。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("template compiled", clog.String("template", "order"))
//
// 使用函数式选项：
//
//	logger, _ := clog.New(&clog.Config{Level: "info"},
//	    clog.WithNamespace("idforged", "http"),
//	    clog.WithStandardContext(),
//	)
package clog

import "context"

// Logger 日志接口，提供结构化日志记录功能
//
// 支持五个日志级别：Debug、Info、Warn、Error、Fatal，
// 每个级别都有带 Context 和不带 Context 的版本。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会自动提取通过 WithContextField 配置的字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建一个带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 创建一个扩展命名空间的子 Logger
	//
	// 示例：
	//   logger := clog.WithNamespace("idforged")
	//   httpLogger := logger.WithNamespace("http")
	//   // 最终命名空间为 "idforged.http"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整日志级别，对所有派生的子 Logger 生效
	SetLevel(level Level) error

	// Flush 强制同步所有缓冲区的日志
	Flush()
}
