package metrics

// Config 指标系统的配置结构体
//
// 典型配置示例（YAML）：
//
//	metrics:
//	  enabled: true
//	  service_name: "idforged"
//	  version: "v0.3.0"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter，所有操作都是空操作
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName 作为 OpenTelemetry Resource 的 service.name 属性
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Version 作为 OpenTelemetry Resource 的 service.version 属性
	Version string `mapstructure:"version" yaml:"version"`

	// Port 大于 0 时启动独立的 Prometheus HTTP 服务器
	Port int `mapstructure:"port" yaml:"port"`

	// Path Prometheus 指标的 HTTP 路径，必须以 "/" 开头
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDevDefaultConfig 开发/测试默认配置：启用采集但不监听端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "idforge"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
