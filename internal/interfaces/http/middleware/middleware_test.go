package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen, fromCtx string
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c)
		fromCtx = logging.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, fromCtx)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/x", http.Header{HeaderRequestID: {"abc-123"}})
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))
}

func TestRequestLogging_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(RequestID(), RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/ok?smiles=CCO", nil)
	serve(r, http.MethodGet, "/bad", nil)
	serve(r, http.MethodGet, "/boom", nil)
	serve(r, http.MethodGet, "/healthz", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/ok?smiles=CCO", entries[0].ContextMap()["path"])
	assert.Equal(t, "/ok", entries[0].ContextMap()["route"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := gin.New()
	r.Use(RequestID(), Recovery(logging.NewLoggerFromCore(core)))
	r.GET("/panic", func(*gin.Context) { panic("kaboom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "COMMON_001")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kaboom", logs.All()[0].ContextMap()["panic"])
}

type httpRecorder struct {
	mu   sync.Mutex
	seen []string
}

func (h *httpRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, method+" "+route+" "+http.StatusText(status))
}

func TestMetrics_RouteLabels(t *testing.T) {
	rec := &httpRecorder{}
	r := gin.New()
	r.Use(Metrics(rec))
	r.GET("/profiles/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/profiles/42", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, []string{"GET /profiles/:id OK", "GET unmatched Not Found"}, rec.seen)
}

func TestKeyedLimiter_Burst(t *testing.T) {
	l := NewKeyedLimiter(1, 2, 0)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, info := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, info.Remaining)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, info = l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 0, info.Remaining)
	assert.True(t, info.ResetAt.After(now))

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys have separate buckets")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok, "bucket refills over time")
}

func TestKeyedLimiter_Cleanup(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Minute)
	defer l.Stop()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(2 * time.Minute)
	l.Allow("new")
	l.cleanup()
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_Rejects(t *testing.T) {
	l := NewKeyedLimiter(0.001, 1, 0)
	r := gin.New()
	r.Use(RequestID(), RateLimit(l, DefaultRateLimitConfig()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	w = serve(r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.org", "*.lab.example.org"}
	cfg.AllowWildcard = true

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"exact", http.MethodGet, "https://app.example.org", "https://app.example.org", http.StatusOK},
		{"wildcard", http.MethodGet, "https://chem.lab.example.org", "https://chem.lab.example.org", http.StatusOK},
		{"denied", http.MethodGet, "https://evil.test", "", http.StatusOK},
		{"preflight", http.MethodOptions, "https://app.example.org", "https://app.example.org", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(r, tt.method, "/x", http.Header{"Origin": {tt.origin}})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

//Personal.AI order the ending
