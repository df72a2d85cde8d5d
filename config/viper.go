package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// loader 基于 Viper 实现 Loader 接口
type loader struct {
	v      *viper.Viper
	cfg    *Config
	logger clog.Logger

	mu        sync.RWMutex
	watches   map[string][]chan Event
	oldValues map[string]any
	loaded    bool
}

func newLoader(cfg *Config, opts ...Option) *loader {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	return &loader{
		v:         viper.New(),
		cfg:       cfg,
		logger:    o.logger,
		watches:   make(map[string][]chan Event),
		oldValues: make(map[string]any),
	}
}

// Load 初始化并从所有来源加载配置
func (l *loader) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.loaded {
		l.mu.Unlock()
		return nil
	}
	l.loaded = true
	l.mu.Unlock()

	// 1. 文件位置
	l.v.SetConfigName(l.cfg.Name)
	l.v.SetConfigType(l.cfg.FileType)
	for _, path := range l.cfg.Paths {
		l.v.AddConfigPath(path)
	}

	// 2. 环境变量（最高优先级）
	l.v.SetEnvPrefix(l.cfg.EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	// 3. .env 文件需要在读取配置文件之前注入进程环境
	if err := l.loadDotEnv(); err != nil {
		l.logger.Debug("no .env file loaded", clog.Error(err))
	}

	// 4. 基础配置（最低优先级）
	fileFound := true
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !xerrors.As(err, &notFound) {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "read config file %s: %v", l.cfg.Name, err)
		}
		fileFound = false
		l.logger.Warn("no configuration file found",
			clog.String("name", l.cfg.Name),
			clog.Any("paths", l.cfg.Paths),
		)
	}

	// 5. 环境特定配置
	if err := l.loadEnvironmentConfig(); err != nil {
		return err
	}

	if err := l.Validate(); err != nil {
		return err
	}

	l.captureCurrentValues()

	if fileFound {
		l.logger.Info("configuration loaded", clog.String("file", l.v.ConfigFileUsed()))
		l.v.OnConfigChange(func(e fsnotify.Event) {
			if err := l.loadEnvironmentConfig(); err != nil {
				l.logger.Error("reload environment config failed", clog.Error(err))
			}
			l.notifyWatches(e)
		})
		l.v.WatchConfig()
	}

	return nil
}

// loadDotEnv 从当前目录和各搜索路径加载 .env 文件，已存在的环境变量不会被覆盖
func (l *loader) loadDotEnv() error {
	var envLoaded bool
	var lastErr error

	candidates := []string{".env"}
	for _, path := range l.cfg.Paths {
		candidates = append(candidates, filepath.Join(path, ".env"))
	}

	seen := make(map[string]struct{}, len(candidates))
	for _, file := range candidates {
		clean := filepath.Clean(file)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}

		if err := godotenv.Load(clean); err == nil {
			envLoaded = true
		} else {
			lastErr = err
		}
	}

	if !envLoaded && lastErr != nil {
		return lastErr
	}
	return nil
}

// loadEnvironmentConfig 合并 <name>.<env> 配置文件，env 来自 <PREFIX>_ENV
func (l *loader) loadEnvironmentConfig() error {
	env := os.Getenv(fmt.Sprintf("%s_ENV", l.cfg.EnvPrefix))
	if env == "" {
		return nil
	}

	envConfigName := fmt.Sprintf("%s.%s", l.cfg.Name, env)
	l.v.SetConfigName(envConfigName)
	defer l.v.SetConfigName(l.cfg.Name)

	if err := l.v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !xerrors.As(err, &notFound) {
			return xerrors.Wrapf(xerrors.ErrInvalidInput, "merge environment config %s: %v", envConfigName, err)
		}
		l.logger.Debug("no environment configuration file", clog.String("env", env))
		return nil
	}

	l.logger.Info("environment configuration merged", clog.String("env", env))
	return nil
}

func (l *loader) captureCurrentValues() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key := range l.watches {
		l.oldValues[key] = l.v.Get(key)
	}
}

// Get 根据 key 获取配置值
func (l *loader) Get(key string) any {
	return l.v.Get(key)
}

// Unmarshal 将整个配置反序列化到结构体
func (l *loader) Unmarshal(v any) error {
	if err := l.v.Unmarshal(v); err != nil {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unmarshal config: %v", err)
	}
	return nil
}

// UnmarshalKey 将特定配置 key 反序列化到结构体
func (l *loader) UnmarshalKey(key string, v any) error {
	if !l.v.IsSet(key) {
		return xerrors.Wrapf(xerrors.ErrNotFound, "config key %s", key)
	}
	if err := l.v.UnmarshalKey(key, v); err != nil {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unmarshal config key %s: %v", key, err)
	}
	return nil
}

// Watch 订阅特定配置 key 的变更
func (l *loader) Watch(ctx context.Context, key string) (<-chan Event, error) {
	if key == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "watch key is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ch := make(chan Event, 10)
	l.watches[key] = append(l.watches[key], ch)
	l.oldValues[key] = l.v.Get(key)

	go func() {
		<-ctx.Done()
		l.removeWatch(key, ch)
	}()

	return ch, nil
}

// removeWatch 移除并关闭监听通道
func (l *loader) removeWatch(key string, ch chan Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	chans := l.watches[key]
	for i, c := range chans {
		if c == ch {
			l.watches[key] = append(chans[:i], chans[i+1:]...)
			close(ch)
			break
		}
	}
	if len(l.watches[key]) == 0 {
		delete(l.watches, key)
		delete(l.oldValues, key)
	}
}

// Validate 验证配置非空
func (l *loader) Validate() error {
	if l.cfg.AllowEmpty {
		return nil
	}
	if len(l.v.AllSettings()) == 0 {
		return xerrors.Wrap(ErrValidationFailed, "configuration is empty")
	}
	return nil
}

// notifyWatches 比较新旧值，仅在发生变化时通知监听者
func (l *loader) notifyWatches(_ fsnotify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, channels := range l.watches {
		newValue := l.v.Get(key)
		oldValue := l.oldValues[key]
		if reflect.DeepEqual(oldValue, newValue) {
			continue
		}

		event := Event{
			Key:       key,
			Value:     newValue,
			OldValue:  oldValue,
			Source:    "file",
			Timestamp: time.Now(),
		}
		l.oldValues[key] = newValue

		for _, ch := range channels {
			select {
			case ch <- event:
			default:
				l.logger.Warn("watch channel is full, event dropped", clog.String("key", key))
			}
		}
	}
}
