package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/testkit"
	"github.com/ceyewan/idforge/xerrors"
)

func newTestServer(t *testing.T, cfg *Config, opts ...idgen.Option) *Server {
	t.Helper()

	meter := testkit.NewMeter()
	opts = append(opts, idgen.WithMeter(meter))
	set, err := idgen.NewSet(&idgen.Config{
		Location: "UTC",
		Templates: map[string]string{
			"order": "ORD{TimeCount=20060102,,%s%04d}",
			"tight": "{TimeCount=,1,%s%d}",
			"trace": "{UUID=v4}",
		},
	}, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close() })

	if cfg == nil {
		cfg = &Config{}
	}
	cfg.Mode = gin.TestMode
	s, err := New(cfg, set, WithLogger(testkit.NewLogger()), WithMeter(meter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixedClock(ms int64) idgen.Option {
	return idgen.WithClock(func() int64 { return ms })
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeIDs(t *testing.T, w *httptest.ResponseRecorder) []string {
	t.Helper()
	var resp idsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.IDs
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestGenerateNamed(t *testing.T) {
	s := newTestServer(t, nil, fixedClock(0))

	w := do(t, s.Handler(), http.MethodGet, "/v1/ids/order", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ORD197001010000"}, decodeIDs(t, w))

	w = do(t, s.Handler(), http.MethodGet, "/v1/ids/order?count=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"ORD197001010001", "ORD197001010002", "ORD197001010003"}, decodeIDs(t, w))

	w = do(t, s.Handler(), http.MethodGet, "/v1/ids/trace?count=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	ids := decodeIDs(t, w)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])
}

func TestGenerateNamedErrors(t *testing.T) {
	s := newTestServer(t, &Config{MaxCount: 10}, fixedClock(0))

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown template", "/v1/ids/missing", http.StatusNotFound, "template_not_found"},
		{"count not integer", "/v1/ids/order?count=abc", http.StatusBadRequest, idgen.CodeInvalidArgument},
		{"count zero", "/v1/ids/order?count=0", http.StatusBadRequest, idgen.CodeInvalidArgument},
		{"count above max", "/v1/ids/order?count=11", http.StatusBadRequest, idgen.CodeInvalidArgument},
		{"sequence overflow", "/v1/ids/tight?count=2", http.StatusTooManyRequests, idgen.CodeSequenceOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodGet, tt.target, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestClockRegressionMapsTo503(t *testing.T) {
	var now atomic.Int64
	now.Store(5000)
	s := newTestServer(t, nil, idgen.WithClock(now.Load))

	w := do(t, s.Handler(), http.MethodGet, "/v1/ids/tight", "")
	require.Equal(t, http.StatusOK, w.Code)

	now.Store(4000)
	w = do(t, s.Handler(), http.MethodGet, "/v1/ids/tight", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, idgen.CodeClockRegression, decodeError(t, w).Code)
}

func TestGenerateSpec(t *testing.T) {
	s := newTestServer(t, &Config{MaxCount: 5}, fixedClock(0))

	w := do(t, s.Handler(), http.MethodPost, "/v1/ids", `{"template":"X-{Const=a,b}","count":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"X-a,b", "X-a,b"}, decodeIDs(t, w))

	w = do(t, s.Handler(), http.MethodPost, "/v1/ids", `{"template":"{Const=only}"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"only"}, decodeIDs(t, w))

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed template", `{"template":"ORD{TimeCount","count":1}`, http.StatusBadRequest, idgen.CodeMalformedSpec},
		{"unknown type", `{"template":"{Nope}","count":1}`, http.StatusBadRequest, idgen.CodeUnknownComponentType},
		{"missing template", `{"count":1}`, http.StatusBadRequest, idgen.CodeInvalidArgument},
		{"count above max", `{"template":"{Const=x}","count":6}`, http.StatusBadRequest, idgen.CodeInvalidArgument},
		{"invalid json", `{`, http.StatusBadRequest, idgen.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/v1/ids", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), "order")

	do(t, s.Handler(), http.MethodGet, "/v1/ids/trace", "")
	w = do(t, s.Handler(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_server_requests_total")
	assert.Contains(t, w.Body.String(), "idgen_generated_total")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, &Config{Limit: LimitConfig{Rate: 1, Burst: 2}})

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/v1/ids/trace", "").Code)
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/v1/ids/trace", "").Code)

	w := do(t, s.Handler(), http.MethodGet, "/v1/ids/trace", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeError(t, w).Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// 健康检查不受限流影响
	assert.Equal(t, http.StatusOK, do(t, s.Handler(), http.MethodGet, "/healthz", "").Code)
}

func TestRateLimitChargesBatchCount(t *testing.T) {
	l := newIPLimiter(LimitConfig{Rate: 1, Burst: 5, IdleTimeout: time.Minute}, testkit.NewLogger())
	defer l.stop()

	assert.True(t, l.allowN("a", 3))
	assert.False(t, l.allowN("a", 3))
	assert.True(t, l.allowN("b", 100), "cost is capped at burst")
	assert.False(t, l.allowN("b", 1))
}

func TestRateLimitChargesBodyCount(t *testing.T) {
	s := newTestServer(t, &Config{Limit: LimitConfig{Rate: 1, Burst: 5}})

	w := do(t, s.Handler(), http.MethodPost, "/v1/ids", `{"template":"{ULID}","count":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeIDs(t, w), 5)

	// 上一个请求已耗尽令牌桶
	w = do(t, s.Handler(), http.MethodPost, "/v1/ids", `{"template":"{ULID}","count":5}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeError(t, w).Code)
}

func TestGenerateSpecRejectsSharedStoreTypes(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"redis sequence", `{"template":"{Seq=x}"}`, idgen.CodeUnknownComponentType},
		{"db segment", `{"template":"{Segment=order}"}`, idgen.CodeUnknownComponentType},
		{"redis worker id", `{"template":"{Snowflake=redis}{Const=1}"}`, idgen.CodeInvalidArgument},
		{"etcd worker id", `{"template":"{Snowflake=etcd}"}`, idgen.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s.Handler(), http.MethodPost, "/v1/ids", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}

	w := do(t, s.Handler(), http.MethodPost, "/v1/ids", `{"template":"{Snowflake=static,3}"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{xerrors.Wrap(idgen.ErrTemplateNotFound, "x"), http.StatusNotFound},
		{&idgen.MalformedSpecError{Index: 3, Reason: "unclosed"}, http.StatusBadRequest},
		{&idgen.UnknownComponentTypeError{Type: "X"}, http.StatusBadRequest},
		{&idgen.SequenceOverflowError{Sequence: 4096}, http.StatusTooManyRequests},
		{&idgen.ClockRegressionError{DeltaMillis: 10}, http.StatusServiceUnavailable},
		{context.Canceled, 499},
		{xerrors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusOf(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestServeGracefulShutdown(t *testing.T) {
	s := newTestServer(t, &Config{ShutdownTimeout: time.Second})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNewRequiresSet(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
