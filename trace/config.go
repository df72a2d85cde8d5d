package trace

// Config 链路追踪配置
//
//	trace:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  sampler: 0.1
type Config struct {
	// Enabled 为 false 时安装只生成 TraceID、不导出的 TracerProvider
	Enabled     bool    `mapstructure:"enabled" yaml:"enabled"`
	ServiceName string  `mapstructure:"service_name" yaml:"service_name"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Sampler     float64 `mapstructure:"sampler" yaml:"sampler"`
	Batcher     string  `mapstructure:"batcher" yaml:"batcher"` // batch | simple
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "idforge"
	}
	if c.Batcher == "" {
		c.Batcher = "batch"
	}
}
