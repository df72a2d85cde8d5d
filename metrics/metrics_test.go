package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ceyewan/idforge/clog"
)

// TestNew 测试创建 Meter 实例
func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		opts     []Option
		wantErr  bool
		wantNoop bool
	}{
		{
			name:    "nil config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name: "disabled config",
			cfg: &Config{
				Enabled:     false,
				ServiceName: "test-service",
			},
			wantNoop: true,
		},
		{
			name: "minimal config",
			cfg: &Config{
				Enabled:     true,
				ServiceName: "test-service",
				Version:     "v1.0.0",
			},
		},
		{
			name: "invalid path",
			cfg: &Config{
				Enabled: true,
				Path:    "metrics",
			},
			wantErr: true,
		},
		{
			name: "with logger option",
			cfg:  NewDevDefaultConfig("test-service"),
			opts: func() []Option {
				logger, _ := clog.New(&clog.Config{Level: "debug"})
				return []Option{WithLogger(logger)}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meter, err := New(tt.cfg, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if meter == nil {
				t.Fatal("New() returned nil meter")
			}

			_, isNoop := meter.(*noopMeter)
			if isNoop != tt.wantNoop {
				t.Errorf("noop = %v, want %v", isNoop, tt.wantNoop)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meter.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
		})
	}
}

func TestMustPanicsOnNilConfig(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Must(nil) did not panic")
		}
	}()
	Must(nil)
}

// TestHandlerExposesInstruments 通过 Handler 抓取指标，验证三种指标都能导出
func TestHandlerExposesInstruments(t *testing.T) {
	meter := Must(NewDevDefaultConfig("handler-test"))
	defer meter.Shutdown(context.Background())

	ctx := context.Background()

	counter, err := meter.Counter("idgen_generated_total", "generated ids")
	if err != nil {
		t.Fatalf("Counter() error = %v", err)
	}
	counter.Inc(ctx, L("template", "order"))
	counter.Add(ctx, 2, L("template", "order"))

	gauge, err := meter.Gauge("idgen_cached_generators", "cached generators")
	if err != nil {
		t.Fatalf("Gauge() error = %v", err)
	}
	gauge.Set(ctx, 3)
	gauge.Inc(ctx)
	gauge.Dec(ctx)

	hist, err := meter.Histogram("idgen_generate_duration_seconds", "generate latency",
		WithUnit("s"), WithBuckets([]float64{0.001, 0.01, 0.1}))
	if err != nil {
		t.Fatalf("Histogram() error = %v", err)
	}
	hist.Record(ctx, 0.005, L("template", "order"))

	w := httptest.NewRecorder()
	Handler(meter).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body, _ := io.ReadAll(w.Body)
	text := string(body)
	for _, want := range []string{
		"idgen_generated_total",
		"idgen_cached_generators",
		"idgen_generate_duration_seconds_bucket",
		`template="order"`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestHandlerForDiscard(t *testing.T) {
	w := httptest.NewRecorder()
	Handler(Discard()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// TestDiscard noop Meter 的所有操作都不应 panic
func TestDiscard(t *testing.T) {
	ctx := context.Background()
	m := Discard()

	c, err := m.Counter("c", "c")
	if err != nil {
		t.Fatal(err)
	}
	c.Inc(ctx)
	c.Add(ctx, 1)

	g, _ := m.Gauge("g", "g")
	g.Set(ctx, 1)
	g.Inc(ctx)
	g.Dec(ctx)

	h, _ := m.Histogram("h", "h")
	h.Record(ctx, 1)

	if err := m.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestHTTPStatusClass(t *testing.T) {
	tests := []struct {
		status int
		class  string
		outcom string
	}{
		{200, "2xx", OutcomeSuccess},
		{302, "3xx", OutcomeSuccess},
		{404, "4xx", OutcomeError},
		{429, "4xx", OutcomeThrottled},
		{503, "5xx", OutcomeError},
		{42, "unknown", OutcomeError},
	}
	for _, tt := range tests {
		if got := HTTPStatusClass(tt.status); got != tt.class {
			t.Errorf("HTTPStatusClass(%d) = %q, want %q", tt.status, got, tt.class)
		}
		if got := HTTPOutcome(tt.status); got != tt.outcom {
			t.Errorf("HTTPOutcome(%d) = %q, want %q", tt.status, got, tt.outcom)
		}
	}
}

func TestLabelKey(t *testing.T) {
	if got := labelKey(nil); got != "" {
		t.Errorf("labelKey(nil) = %q", got)
	}
	got := labelKey([]Label{L("a", "1"), L("b", "2")})
	if got != "a=1|b=2" {
		t.Errorf("labelKey = %q, want %q", got, "a=1|b=2")
	}
}
