// Package config 为 idforge 提供统一的配置管理能力，基于 Viper 实现。
//
// 配置来源及优先级（由高到低）：
//   - 环境变量，前缀默认为 IDFORGE，"." 替换为 "_"，例如 IDFORGE_SERVER_ADDR
//   - .env 文件（当前目录及各搜索路径）
//   - 环境特定配置 config.<env>.yaml，env 取自 IDFORGE_ENV
//   - 基础配置 config.yaml
//
// 基本使用：
//
//	loader := config.MustLoad(&config.Config{
//		Name:  "idforged",
//		Paths: []string{"./config"},
//	})
//
//	var cfg AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//		panic(err)
//	}
//
//	ch, _ := loader.Watch(ctx, "idgen.templates")
//	for event := range ch {
//		fmt.Printf("配置变化: %s = %v\n", event.Key, event.Value)
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 加载配置并启动文件监听
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string // 配置 key
	Value     any    // 新值
	OldValue  any    // 旧值
	Source    string // "file" | "env"
	Timestamp time.Time
}
