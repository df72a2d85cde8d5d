package clog

import (
	"context"
	"log/slog"
)

// contextAttrs 按配置从 ctx 中提取字段，追加到 attrs。
func contextAttrs(ctx context.Context, o *options, attrs []slog.Attr) []slog.Attr {
	if ctx == nil || o == nil {
		return attrs
	}
	for _, cf := range o.contextFields {
		if val := ctx.Value(cf.Key); val != nil {
			attrs = append(attrs, slog.Any(cf.FieldName, val))
		}
	}
	return attrs
}
