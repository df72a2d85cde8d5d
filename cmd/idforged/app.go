package main

import (
	"context"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/config"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/internal/server"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

// appConfig idforged 的完整配置，连接器节点缺省时不创建对应连接
//
//	server:
//	  addr: ":8080"
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	trace:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	idgen:
//	  templates:
//	    order: "ORD{TimeCount=20060102150405,1000,%s%03d}"
//	redis:
//	  addr: "127.0.0.1:6379"
type appConfig struct {
	Server  server.Config          `mapstructure:"server" yaml:"server"`
	Log     clog.Config            `mapstructure:"log" yaml:"log"`
	Metrics metrics.Config         `mapstructure:"metrics" yaml:"metrics"`
	Trace   trace.Config           `mapstructure:"trace" yaml:"trace"`
	IDGen   idgen.Config           `mapstructure:"idgen" yaml:"idgen"`
	Redis   connector.RedisConfig  `mapstructure:"redis" yaml:"redis"`
	Etcd    connector.EtcdConfig   `mapstructure:"etcd" yaml:"etcd"`
	SQLite  connector.SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`
	MySQL   connector.MySQLConfig  `mapstructure:"mysql" yaml:"mysql"`
}

func loadConfig(ctx context.Context, name string, paths []string) (*appConfig, error) {
	loader, err := config.New(&config.Config{
		Name:       name,
		Paths:      paths,
		AllowEmpty: true,
	})
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}

	var cfg appConfig
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// app 持有进程级资源，close 按创建的逆序释放
type app struct {
	cfg     *appConfig
	logger  clog.Logger
	meter   metrics.Meter
	set     *idgen.Set
	closers []func() error
}

func newApp(ctx context.Context, cfg *appConfig) (_ *app, err error) {
	logger, err := clog.New(&cfg.Log)
	if err != nil {
		return nil, xerrors.Wrap(err, "create logger")
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = "idforged"
	}
	if a.meter, err = metrics.New(&cfg.Metrics, metrics.WithLogger(logger)); err != nil {
		return nil, xerrors.Wrap(err, "create meter")
	}
	a.closers = append(a.closers, func() error { return a.meter.Shutdown(context.Background()) })

	if cfg.Trace.ServiceName == "" {
		cfg.Trace.ServiceName = "idforged"
	}
	shutdownTrace, err := trace.Init(&cfg.Trace)
	if err != nil {
		return nil, xerrors.Wrap(err, "init tracing")
	}
	a.closers = append(a.closers, func() error { return shutdownTrace(context.Background()) })

	opts := []idgen.Option{idgen.WithLogger(logger), idgen.WithMeter(a.meter)}
	connOpts := []connector.Option{connector.WithLogger(logger), connector.WithMeter(a.meter)}

	if cfg.Redis.Addr != "" {
		conn, err := connector.NewRedis(&cfg.Redis, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		opts = append(opts, idgen.WithRedisConnector(conn))
	}

	if len(cfg.Etcd.Endpoints) > 0 {
		conn, err := connector.NewEtcd(&cfg.Etcd, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		opts = append(opts, idgen.WithEtcdConnector(conn))
	}

	// MySQL 优先于 SQLite，两者只会有一个作为号段存储
	switch {
	case cfg.MySQL.DSN != "" || cfg.MySQL.Host != "":
		conn, err := connector.NewMySQL(&cfg.MySQL, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		opts = append(opts, idgen.WithDB(conn))
	case cfg.SQLite.Path != "":
		conn, err := connector.NewSQLite(&cfg.SQLite, connOpts...)
		if err != nil {
			return nil, err
		}
		if err := a.connect(ctx, conn); err != nil {
			return nil, err
		}
		opts = append(opts, idgen.WithDB(conn))
	}

	if a.set, err = idgen.NewSet(&cfg.IDGen, nil, opts...); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.set.Close)
	return a, nil
}

func (a *app) connect(ctx context.Context, conn connector.Connector) error {
	if err := conn.Connect(ctx); err != nil {
		return xerrors.Wrapf(err, "connect %s", conn.Name())
	}
	a.closers = append(a.closers, conn.Close)
	return nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return xerrors.Combine(errs...)
}
