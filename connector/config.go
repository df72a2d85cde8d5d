package connector

import (
	"fmt"
	"time"

	"github.com/ceyewan/idforge/xerrors"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name string `mapstructure:"name" yaml:"name"` // 连接器名称 (默认: "default")

	Addr     string `mapstructure:"addr" yaml:"addr"`         // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password" yaml:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db" yaml:"db"`             // [可选] 数据库编号 (默认: 0)

	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`           // 连接池大小 (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"` // 最小空闲连接数
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`     // 连接超时 (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`     // 读取超时 (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`   // 写入超时 (默认: 3s)
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrConfig, "redis config is nil")
	}
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is required")
	}
	if c.DB < 0 {
		return xerrors.Wrapf(ErrConfig, "redis db must be >= 0, got %d", c.DB)
	}
	return nil
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`

	DialTimeout      time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`             // 连接超时 (默认: 5s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time" yaml:"keep_alive_time"`       // 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout" yaml:"keep_alive_timeout"` // 心跳超时 (默认: 3s)
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are required")
	}
	return nil
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	DSN      string `mapstructure:"dsn" yaml:"dsn"` // 完整 DSN，提供时忽略 Host/Port 等字段
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"` // 默认 3306
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	Charset  string `mapstructure:"charset" yaml:"charset"` // 默认 utf8mb4

	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`       // 默认 10
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`       // 默认 100
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // 默认 1h
	LogSQL          bool          `mapstructure:"log_sql" yaml:"log_sql"`                     // 记录每条 SQL（Debug 级别）
}

func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

func (c *MySQLConfig) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrConfig, "mysql config is nil")
	}
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "mysql host is required")
	}
	if c.Port <= 0 {
		return xerrors.Wrapf(ErrConfig, "mysql port must be > 0, got %d", c.Port)
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "mysql username is required")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "mysql database is required")
	}
	return nil
}

// dsn 优先使用 DSN 字段，否则从各字段拼接
func (c *MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// SQLiteConfig SQLite 连接配置
type SQLiteConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	// Path 数据库文件路径，":memory:" 或 "file::memory:?cache=shared" 表示内存数据库
	Path   string `mapstructure:"path" yaml:"path"`
	LogSQL bool   `mapstructure:"log_sql" yaml:"log_sql"`
}

func (c *SQLiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
}

func (c *SQLiteConfig) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrConfig, "sqlite config is nil")
	}
	c.setDefaults()
	if c.Path == "" {
		return xerrors.Wrap(ErrConfig, "sqlite path is required")
	}
	return nil
}
