package connector

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/idforge/clog"
)

func getTestLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("connector-test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

func setupRedisContainer(t *testing.T) *RedisConfig {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &RedisConfig{
		Name: "test-redis",
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	}
}

func setupEtcdContainer(t *testing.T) *EtcdConfig {
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &EtcdConfig{
		Name:      "test-etcd",
		Endpoints: []string{fmt.Sprintf("%s:%s", host, port.Port())},
	}
}

func setupMySQLContainer(t *testing.T) *MySQLConfig {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("idforge"),
		tcmysql.WithUsername("idforge"),
		tcmysql.WithPassword("idforge"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return &MySQLConfig{
		Name:     "test-mysql",
		Host:     host,
		Port:     port,
		Username: "idforge",
		Password: "idforge",
		Database: "idforge",
	}
}

func TestRedisConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupRedisContainer(t)
	conn, err := NewRedis(cfg, WithLogger(getTestLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	client := conn.GetClient()
	require.NotNil(t, client)

	key := "idforge:test:" + time.Now().Format("150405.000")
	n, err := client.IncrBy(ctx, key, 10).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
}

func TestEtcdConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupEtcdContainer(t)
	conn, err := NewEtcd(cfg, WithLogger(getTestLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	client := conn.GetClient()
	require.NotNil(t, client)

	_, err = client.Put(ctx, "/idforge/test", "v")
	require.NoError(t, err)
	resp, err := client.Get(ctx, "/idforge/test")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "v", string(resp.Kvs[0].Value))

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
}

func TestMySQLConnectorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := setupMySQLContainer(t)
	conn, err := NewMySQL(cfg, WithLogger(getTestLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	var one int
	require.NoError(t, conn.GetClient().Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
}
