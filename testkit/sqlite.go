package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/idforge/connector"
)

// NewSQLiteConnector 返回已连接的内存 SQLite 连接器，每次调用都是独立的数据库
func NewSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	t.Helper()
	return connectSQLite(t, &connector.SQLiteConfig{Name: "test-sqlite", Path: ":memory:"})
}

// NewPersistentSQLiteConnector 返回文件型 SQLite 连接器，文件位于 t.TempDir()
func NewPersistentSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idforge.db")
	return connectSQLite(t, &connector.SQLiteConfig{Name: "test-sqlite-file", Path: path})
}

// NewSQLiteDB 返回内存 SQLite 的 GORM 实例
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	return NewSQLiteConnector(t).GetClient()
}

func connectSQLite(t *testing.T, cfg *connector.SQLiteConfig) connector.SQLiteConnector {
	t.Helper()
	conn, err := connector.NewSQLite(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to sqlite")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
