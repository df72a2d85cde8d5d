// Package testkit 为 idforge 各包的测试提供共享依赖：日志、指标、冻结时钟，
// 以及基于 testcontainers 的 Redis / Etcd / MySQL 与内存 SQLite 连接器。
//
// 需要容器的辅助函数在 -short 模式下会直接 Skip。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/Songmu/flextime"
	"github.com/google/uuid"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包，Meter 在测试结束时关闭
func NewKit(t *testing.T) *Kit {
	t.Helper()
	meter := NewMeter()
	t.Cleanup(func() {
		_ = meter.Shutdown(context.Background())
	})
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  meter,
	}
}

// NewLogger 返回一个开发格式的 logger，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("idforge"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个不监听端口的 meter
func NewMeter() metrics.Meter {
	meter, err := metrics.New(metrics.NewDevDefaultConfig("test"))
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 返回一个带有超时的测试上下文，测试结束时自动取消
func NewContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)，用于生成互不冲突的 key
func NewID() string {
	return uuid.New().String()[0:8]
}

// FreezeClock 把 flextime 固定在 at，测试结束时恢复
func FreezeClock(t *testing.T, at time.Time) {
	t.Helper()
	restore := flextime.Fix(at)
	t.Cleanup(restore)
}

// SetClock 把 flextime 设置为 at 并继续流动，测试结束时恢复
func SetClock(t *testing.T, at time.Time) {
	t.Helper()
	restore := flextime.Set(at)
	t.Cleanup(restore)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
}
