package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/idforge/connector"
)

// NewEtcdContainerConfig 启动 Etcd 容器并返回连接配置，容器由 t.Cleanup 回收
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	t.Helper()
	skipShort(t)
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:        "testcontainer-etcd",
		Endpoints:   []string{fmt.Sprintf("%s:%s", host, port.Port())},
		DialTimeout: 5 * time.Second,
	}
}

// NewEtcdConnector 返回已连接的 Etcd 连接器
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()
	conn, err := connector.NewEtcd(NewEtcdContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
