package clog

import "io"

// ContextField 定义从 Context 中提取字段的规则
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项，用于配置 Logger 实例
type Option func(*options)

type options struct {
	namespaceParts  []string
	namespaceJoiner string
	contextFields   []ContextField
	writer          io.Writer // 测试用输出
}

// WithNamespace 设置日志命名空间，多级以 "." 连接
//
//	clog.WithNamespace("idforged", "http") // namespace=idforged.http
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 添加自定义的 Context 字段提取规则
//
//	clog.WithContextField("request_id", "request_id")
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{
			Key:       key,
			FieldName: fieldName,
		})
	}
}

// WithStandardContext 自动提取 trace_id、user_id、request_id
func WithStandardContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: "trace_id", FieldName: "trace_id"},
			ContextField{Key: "user_id", FieldName: "user_id"},
			ContextField{Key: "request_id", FieldName: "request_id"},
		)
	}
}

// WithWriter 将日志写入指定 writer，优先级高于 Config.Output
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{namespaceJoiner: "."}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
