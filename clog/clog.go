package clog

import (
	"fmt"
	"sync/atomic"
)

var defaultLogger atomic.Value

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用开发环境默认配置
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 类似 New，但出错时 panic。仅用于初始化阶段。
func Must(config *Config, opts ...Option) Logger {
	logger, err := New(config, opts...)
	if err != nil {
		panic(err)
	}
	return logger
}

// Default 返回进程级默认 Logger。未通过 SetDefault 设置时返回静默 Logger。
func Default() Logger {
	if l, ok := defaultLogger.Load().(Logger); ok && l != nil {
		return l
	}
	return Discard()
}

// SetDefault 设置进程级默认 Logger，通常在 main 中调用一次。
func SetDefault(logger Logger) {
	if logger == nil {
		return
	}
	defaultLogger.Store(logger)
}
