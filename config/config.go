package config

import (
	"context"
	"strings"

	"github.com/ceyewan/idforge/xerrors"
)

// DefaultEnvPrefix 默认环境变量前缀
const DefaultEnvPrefix = "IDFORGE"

// Config 配置加载器自身的配置
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "config"
	Paths     []string // 配置文件搜索路径，默认 [".", "./config"]
	FileType  string   // 配置文件类型 (yaml, json, etc.)
	EnvPrefix string   // 环境变量前缀，默认 "IDFORGE"

	// AllowEmpty 为 true 时允许没有任何配置项（既无文件也无环境变量）
	AllowEmpty bool
}

// validate 设置默认值并验证配置
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "config"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = DefaultEnvPrefix
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)

	if strings.ContainsAny(c.Name, `/\`) {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "config name %q must not contain path separators", c.Name)
	}
	return nil
}

// New 创建配置加载器，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newLoader(cfg, opts...), nil
}

// MustLoad 创建并加载配置，失败时 panic，仅用于程序启动阶段
func MustLoad(cfg *Config, opts ...Option) Loader {
	l, err := New(cfg, opts...)
	if err != nil {
		panic(err)
	}
	if err := l.Load(context.Background()); err != nil {
		panic(err)
	}
	return l
}
