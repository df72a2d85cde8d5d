package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level string, opts ...Option) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts = append(opts, WithWriter(buf))
	logger, err := New(&Config{Level: level, Format: "json"}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

// TestNew 测试 Logger 创建
func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "valid config", config: &Config{Level: "info", Format: "console", Output: "stdout"}},
		{name: "nil config", config: nil},
		{name: "prod config", config: NewProdDefaultConfig()},
		{name: "invalid level", config: &Config{Level: "invalid"}, wantErr: true},
		{name: "invalid format", config: &Config{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger on success")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "Warn", "error", "fatal"} {
		lvl, err := ParseLevel(s)
		if err != nil {
			t.Errorf("ParseLevel(%q) error = %v", s, err)
		}
		if lvl.String() != strings.ToLower(s) {
			t.Errorf("ParseLevel(%q).String() = %q", s, lvl.String())
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) 期望返回错误")
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, "warn")

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0]["level"] != "WARN" || lines[1]["level"] != "ERROR" {
		t.Errorf("unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	child := logger.With(String("component", "idgen"))

	child.Debug("hidden")
	if err := logger.SetLevel(DebugLevel); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	child.Debug("visible")

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["msg"] != "visible" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if lines[0]["component"] != "idgen" {
		t.Errorf("component = %v, want idgen", lines[0]["component"])
	}
}

func TestNamespaceAndFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug", WithNamespace("idforged"))
	logger.WithNamespace("http").Info("request",
		String("template", "order"),
		Int64("count", 3),
		Error(errors.New("boom")),
		Error(nil),
	)

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	line := lines[0]
	if line[NamespaceKey] != "idforged.http" {
		t.Errorf("namespace = %v", line[NamespaceKey])
	}
	if line["template"] != "order" {
		t.Errorf("template = %v", line["template"])
	}
	if line["count"] != float64(3) {
		t.Errorf("count = %v", line["count"])
	}
	if line["err_msg"] != "boom" {
		t.Errorf("err_msg = %v", line["err_msg"])
	}
	if _, ok := line[""]; ok {
		t.Error("nil error field should be dropped")
	}
}

func TestContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info", WithStandardContext(), WithContextField(ctxKey{}, "tenant"))

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	ctx = context.WithValue(ctx, ctxKey{}, "acme")
	logger.InfoContext(ctx, "generated")

	lines := decodeLines(t, buf)
	if lines[0]["request_id"] != "req-1" {
		t.Errorf("request_id = %v", lines[0]["request_id"])
	}
	if lines[0]["tenant"] != "acme" {
		t.Errorf("tenant = %v", lines[0]["tenant"])
	}
	if _, ok := lines[0]["trace_id"]; ok {
		t.Error("absent context key should not be logged")
	}
}

type ctxKey struct{}

func TestErrorWithCode(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	logger.Error("failed", ErrorWithCode(errors.New("overflow"), "sequence_overflow"))

	lines := decodeLines(t, buf)
	group, ok := lines[0]["error"].(map[string]any)
	if !ok {
		t.Fatalf("error group missing: %v", lines[0])
	}
	if group["code"] != "sequence_overflow" || group["msg"] != "overflow" {
		t.Errorf("unexpected group: %v", group)
	}
}

func TestDiscardAndDefault(t *testing.T) {
	d := Discard()
	d.Info("nothing")
	if d.With(String("k", "v")) == nil || d.WithNamespace("x") == nil {
		t.Error("Discard children should not be nil")
	}
	if Default() == nil {
		t.Error("Default() should never be nil")
	}

	logger, _ := newBufferLogger(t, "info")
	SetDefault(logger)
	if Default() != logger {
		t.Error("SetDefault did not replace the default logger")
	}
}
