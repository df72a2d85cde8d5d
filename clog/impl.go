package clog

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// loggerImpl 是 Logger 接口的具体实现
type loggerImpl struct {
	handler   slog.Handler
	levelVar  *slog.LevelVar
	options   *options
	baseAttrs []slog.Attr
}

func newLogger(config *Config, o *options) (Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(level.toSlog())

	handler, err := newHandler(config, o, levelVar)
	if err != nil {
		return nil, err
	}

	return &loggerImpl{
		handler:  handler,
		levelVar: levelVar,
		options:  o,
	}, nil
}

func (l *loggerImpl) Debug(msg string, fields ...Field) {
	l.log(context.Background(), DebugLevel, msg, fields...)
}

func (l *loggerImpl) Info(msg string, fields ...Field) {
	l.log(context.Background(), InfoLevel, msg, fields...)
}

func (l *loggerImpl) Warn(msg string, fields ...Field) {
	l.log(context.Background(), WarnLevel, msg, fields...)
}

func (l *loggerImpl) Error(msg string, fields ...Field) {
	l.log(context.Background(), ErrorLevel, msg, fields...)
}

func (l *loggerImpl) Fatal(msg string, fields ...Field) {
	l.log(context.Background(), FatalLevel, msg, fields...)
}

func (l *loggerImpl) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields...)
}

func (l *loggerImpl) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields...)
}

func (l *loggerImpl) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields...)
}

func (l *loggerImpl) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields...)
}

func (l *loggerImpl) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields...)
}

func (l *loggerImpl) WithNamespace(parts ...string) Logger {
	newOptions := *l.options
	newOptions.namespaceParts = append(append([]string(nil), l.options.namespaceParts...), parts...)

	return &loggerImpl{
		handler:   l.handler,
		levelVar:  l.levelVar,
		options:   &newOptions,
		baseAttrs: l.baseAttrs,
	}
}

func (l *loggerImpl) With(fields ...Field) Logger {
	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields))
	attrs = append(attrs, l.baseAttrs...)
	attrs = append(attrs, fields...)

	return &loggerImpl{
		handler:   l.handler,
		levelVar:  l.levelVar,
		options:   l.options,
		baseAttrs: attrs,
	}
}

func (l *loggerImpl) log(ctx context.Context, level Level, msg string, fields ...Field) {
	slogLevel := level.toSlog()
	if !l.handler.Enabled(ctx, slogLevel) {
		return
	}

	attrs := make([]slog.Attr, 0, len(l.baseAttrs)+len(fields)+4)
	if ns, ok := namespaceAttr(l.options); ok {
		attrs = append(attrs, ns)
	}
	attrs = append(attrs, l.baseAttrs...)
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		attrs = append(attrs, f)
	}
	attrs = contextAttrs(ctx, l.options, attrs)

	// skip: runtime.Callers, log, Debug/Info/...
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	record := slog.NewRecord(time.Now(), slogLevel, msg, pcs[0])
	record.AddAttrs(attrs...)

	_ = l.handler.Handle(ctx, record)

	if level == FatalLevel {
		os.Exit(1)
	}
}

// SetLevel 动态调整日志级别
func (l *loggerImpl) SetLevel(level Level) error {
	l.levelVar.Set(level.toSlog())
	return nil
}

// Flush slog 的内置 handler 为同步写入，这里无需处理
func (l *loggerImpl) Flush() {}
