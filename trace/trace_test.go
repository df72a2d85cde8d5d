package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/idforge/xerrors"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	prev := otel.GetTracerProvider()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func TestInitDisabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Init(&Config{ServiceName: "idforged"})
	require.NoError(t, err)

	_, span := Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().HasTraceID())
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestInitValidation(t *testing.T) {
	_, err := Init(nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing endpoint", Config{Enabled: true, Sampler: 1}},
		{"sampler above one", Config{Enabled: true, Endpoint: "localhost:4317", Sampler: 1.5}},
		{"unknown batcher", Config{Enabled: true, Endpoint: "localhost:4317", Sampler: 1, Batcher: "async"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Init(&tt.cfg)
			assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
		})
	}
}

func TestStartAndEnd(t *testing.T) {
	recorder := setupRecorder(t)

	_, ok := Start(context.Background(), "ok", attribute.String("idgen.template", "order"))
	End(ok, nil)

	_, failed := Start(context.Background(), "failed")
	End(failed, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "ok", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("idgen.template", "order"))

	assert.Equal(t, "failed", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
