package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// newHandler 创建适配 clog 配置的 slog.Handler。
//
// 构造顺序：writer -> handler options -> json/text handler。
func newHandler(config *Config, o *options, levelVar *slog.LevelVar) (slog.Handler, error) {
	w, err := resolveWriter(config, o)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: newReplaceAttr(config),
	}

	if strings.ToLower(config.Format) == "json" {
		return slog.NewJSONHandler(w, opts), nil
	}
	return slog.NewTextHandler(w, opts), nil
}

// resolveWriter 根据配置创建输出 writer。
func resolveWriter(config *Config, o *options) (io.Writer, error) {
	if o != nil && o.writer != nil {
		return o.writer, nil
	}
	switch strings.ToLower(config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", config.Output, err)
		}
		return f, nil
	}
}

// newReplaceAttr 统一处理 Level/Time/Source 字段。
func newReplaceAttr(config *Config) func(groups []string, a slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			a.Value = slog.StringValue(levelLabel(level))
		case slog.TimeKey:
			if a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
			}
		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok {
				file := trimSourcePath(source.File, config.SourceRoot)
				return slog.String("caller", fmt.Sprintf("%s:%d", file, source.Line))
			}
		}
		return a
	}
}

func levelLabel(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG"
	case level <= slog.LevelInfo:
		return "INFO"
	case level <= slog.LevelWarn:
		return "WARN"
	case level <= slog.LevelError:
		return "ERROR"
	default:
		return "FATAL"
	}
}

// trimSourcePath 根据 sourceRoot 裁剪调用文件路径。
func trimSourcePath(fileName, sourceRoot string) string {
	if sourceRoot != "" {
		relPath, err := filepath.Rel(sourceRoot, fileName)
		if err == nil && !strings.HasPrefix(relPath, "..") {
			return relPath
		}
	}
	if idx := strings.Index(fileName, "idforge"); idx != -1 {
		return fileName[idx:]
	}
	return fileName
}
