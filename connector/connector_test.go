package connector

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/metrics"
)

func TestRedisConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *RedisConfig
		wantErr     bool
		errContains string
	}{
		{name: "nil config", cfg: nil, wantErr: true, errContains: "nil"},
		{name: "defaults applied", cfg: &RedisConfig{Addr: "localhost:6379"}},
		{name: "empty addr", cfg: &RedisConfig{}, wantErr: true, errContains: "addr"},
		{name: "negative db", cfg: &RedisConfig{Addr: "localhost:6379", DB: -1}, wantErr: true, errContains: "db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfig)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "default", tt.cfg.Name)
			assert.Equal(t, 10, tt.cfg.PoolSize)
			assert.Equal(t, 5*time.Second, tt.cfg.DialTimeout)
		})
	}
}

func TestEtcdConfigValidation(t *testing.T) {
	cfg := &EtcdConfig{}
	assert.ErrorIs(t, cfg.validate(), ErrConfig)

	cfg = &EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.KeepAliveTime)
	assert.Equal(t, 3*time.Second, cfg.KeepAliveTimeout)
}

func TestMySQLConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *MySQLConfig
		wantErr bool
		wantDSN string
	}{
		{
			name: "fields",
			cfg:  &MySQLConfig{Host: "db", Username: "root", Password: "pw", Database: "idforge"},
			wantDSN: "root:pw@tcp(db:3306)/idforge?charset=utf8mb4&parseTime=True&loc=Local",
		},
		{
			name:    "dsn wins",
			cfg:     &MySQLConfig{DSN: "u:p@tcp(h:1)/d"},
			wantDSN: "u:p@tcp(h:1)/d",
		},
		{name: "missing host", cfg: &MySQLConfig{Username: "root", Database: "d"}, wantErr: true},
		{name: "missing username", cfg: &MySQLConfig{Host: "h", Database: "d"}, wantErr: true},
		{name: "missing database", cfg: &MySQLConfig{Host: "h", Username: "root"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDSN, tt.cfg.dsn())
			assert.Equal(t, 100, tt.cfg.MaxOpenConns)
		})
	}
}

func TestSQLiteConfigValidation(t *testing.T) {
	assert.ErrorIs(t, (&SQLiteConfig{}).validate(), ErrConfig)

	cfg := &SQLiteConfig{Path: ":memory:"}
	require.NoError(t, cfg.validate())
	assert.Equal(t, "default", cfg.Name)
}

func TestNewDoesNotConnect(t *testing.T) {
	redisConn, err := NewRedis(&RedisConfig{Name: "r", Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	etcdConn, err := NewEtcd(&EtcdConfig{Name: "e", Endpoints: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	mysqlConn, err := NewMySQL(&MySQLConfig{Name: "m", DSN: "u:p@tcp(127.0.0.1:1)/d"})
	require.NoError(t, err)

	ctx := context.Background()
	for _, c := range []Connector{redisConn, etcdConn, mysqlConn} {
		assert.False(t, c.IsHealthy(), c.Name())
		assert.ErrorIs(t, c.HealthCheck(ctx), ErrClientNil, c.Name())
		// 未连接时 Close 是 no-op，且可重复调用
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	}

	assert.Nil(t, redisConn.GetClient())
	assert.Nil(t, etcdConn.GetClient())
	assert.Nil(t, mysqlConn.GetClient())
}

func TestRedisConnectFailure(t *testing.T) {
	conn, err := NewRedis(&RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = conn.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, conn.IsHealthy())
	assert.Nil(t, conn.GetClient())
}

func TestSQLiteConnector(t *testing.T) {
	meter := metrics.Must(metrics.NewDevDefaultConfig("connector-test"))
	defer meter.Shutdown(context.Background())

	conn, err := NewSQLite(&SQLiteConfig{Name: "mem", Path: ":memory:", LogSQL: true},
		WithLogger(clog.Discard()), WithMeter(meter))
	require.NoError(t, err)
	assert.Equal(t, "mem", conn.Name())
	assert.False(t, conn.IsHealthy())

	ctx := context.Background()
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())

	db := conn.GetClient()
	require.NotNil(t, db)

	type leafAlloc struct {
		BizTag string `gorm:"primaryKey"`
		MaxID  int64
	}
	require.NoError(t, db.AutoMigrate(&leafAlloc{}))
	require.NoError(t, db.Create(&leafAlloc{BizTag: "order", MaxID: 1000}).Error)

	var got leafAlloc
	require.NoError(t, db.First(&got, "biz_tag = ?", "order").Error)
	assert.Equal(t, int64(1000), got.MaxID)

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.False(t, conn.IsHealthy())
	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.HealthCheck(ctx), ErrClientNil)
}

func TestSQLiteFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idforge.db")
	ctx := context.Background()

	conn, err := NewSQLite(&SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.GetClient().Exec("CREATE TABLE t (v TEXT)").Error)
	require.NoError(t, conn.GetClient().Exec("INSERT INTO t (v) VALUES (?)", "persisted").Error)
	require.NoError(t, conn.Close())

	conn2, err := NewSQLite(&SQLiteConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, conn2.Connect(ctx))
	defer conn2.Close()

	var v string
	require.NoError(t, conn2.GetClient().Raw("SELECT v FROM t").Scan(&v).Error)
	assert.Equal(t, "persisted", v)
}

func TestSQLiteConcurrentConnect(t *testing.T) {
	conn, err := NewSQLite(&SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, conn.Connect(context.Background()))
		}()
	}
	wg.Wait()
	assert.True(t, conn.IsHealthy())
}
