package clog

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// Field 是 slog.Attr 的类型别名
type Field = slog.Attr

// String 创建字符串字段
func String(k, v string) Field {
	return slog.String(k, v)
}

// Int 创建整数字段
func Int(k string, v int) Field {
	return slog.Int(k, v)
}

// Int64 创建64位整数字段
func Int64(k string, v int64) Field {
	return slog.Int64(k, v)
}

// Float64 创建浮点数字段
func Float64(k string, v float64) Field {
	return slog.Float64(k, v)
}

// Bool 创建布尔字段
func Bool(k string, v bool) Field {
	return slog.Bool(k, v)
}

// Time 创建时间字段
func Time(k string, v time.Time) Field {
	return slog.Time(k, v)
}

// Duration 创建时间长度字段
func Duration(k string, v time.Duration) Field {
	return slog.Duration(k, v)
}

// Any 创建任意类型字段
func Any(k string, v any) Field {
	return slog.Any(k, v)
}

// Error 将错误简化为仅包含错误消息的字段：err_msg="..."
func Error(err error) Field {
	if err == nil {
		return slog.String("", "")
	}
	return slog.String("err_msg", err.Error())
}

// ErrorWithCode 包含错误码的错误字段：error={msg="...", code="..."}
func ErrorWithCode(err error, code string) Field {
	if err == nil {
		return slog.Group("error", slog.String("code", code))
	}
	return slog.Group("error",
		slog.String("msg", err.Error()),
		slog.String("code", code),
	)
}

// ErrorWithStack 包含错误消息、类型和堆栈信息的字段
//
// 注意：生产环境中谨慎使用，可能产生过多日志。
func ErrorWithStack(err error) Field {
	if err == nil {
		return slog.String("", "")
	}
	attrs := []any{
		slog.String("msg", err.Error()),
		slog.String("type", fmt.Sprintf("%T", err)),
	}
	if stack := stackTrace(3); stack != "" {
		attrs = append(attrs, slog.String("stack", stack))
	}
	return slog.Group("error", attrs...)
}

// stackTrace 获取当前调用栈信息（内部使用）
func stackTrace(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return ""
	}

	var builder strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&builder, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return builder.String()
}
