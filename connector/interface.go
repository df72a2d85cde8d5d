// Package connector 为 idforge 提供统一的外部连接管理能力。
//
// idgen 中依赖外部存储的组件（Seq、Snowflake 的 WorkerID 分配、Segment 号段）
// 都只借用 Connector 提供的客户端，连接的生命周期由应用层负责：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//	reg := idgen.Builtin(idgen.WithRedisConnector(conn))
//
// 约定：
//   - NewXXX 只校验配置，不建立连接；Connect 才真正连接，可重复调用
//   - Close 可重复调用，关闭后 GetClient 返回 nil，HealthCheck 返回 ErrClientNil
//   - 应按照 LIFO 顺序释放资源：先关闭依赖 Connector 的组件，再关闭 Connector
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 定义所有连接器的通用行为，方法均为并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 发送探测请求并更新缓存的健康状态
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次 Connect/HealthCheck 的结果，无阻塞
	IsHealthy() bool

	// Name 返回连接实例名称，用于日志与指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后返回零值
	GetClient() T
}

// RedisConnector Redis 连接器，供 Seq 组件与 Snowflake 的 WorkerID 分配使用
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器，供 Snowflake 的租约式 WorkerID 分配使用
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}

// MySQLConnector MySQL 连接器，基于 GORM，供 Segment 号段分配使用
type MySQLConnector interface {
	TypedConnector[*gorm.DB]
}

// SQLiteConnector SQLite 连接器，基于 GORM，适合测试和单机部署
type SQLiteConnector interface {
	TypedConnector[*gorm.DB]
}
