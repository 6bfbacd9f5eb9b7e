package prometheus

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
)

func newTestCollector(t *testing.T) MetricsCollector {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "test", Subsystem: "unit"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c MetricsCollector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewMetricsCollector(t *testing.T) {
	c := newTestCollector(t)
	assert.NotNil(t, c)

	_, err := NewMetricsCollector(CollectorConfig{}, nil)
	assert.Error(t, err)
}

func TestNewMetricsCollector_ProcessAndGoMetrics(t *testing.T) {
	c, err := NewMetricsCollector(CollectorConfig{
		Namespace:            "test",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, nil)
	require.NoError(t, err)
	out := scrape(t, c)
	assert.Contains(t, out, "go_goroutines")
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)
	vec := c.RegisterCounter("events_total", "Events.", "kind")
	vec.WithLabelValues("a").Inc()
	vec.WithLabelValues("a").Add(2)

	assert.Contains(t, scrape(t, c), `test_unit_events_total{kind="a"} 3`)
}

func TestRegisterCounter_SameNameReturnsSameFamily(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("dup_total", "Dup.").WithLabelValues().Inc()
	c.RegisterCounter("dup_total", "Dup.").WithLabelValues().Inc()

	assert.Contains(t, scrape(t, c), "test_unit_dup_total 2")
}

func TestRegister_KindMismatchIsNoop(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterCounter("clash", "Clash.")
	g := c.RegisterGauge("clash", "Clash.")

	assert.IsType(t, noopGaugeVec{}, g)
	assert.NotPanics(t, func() { g.WithLabelValues().Set(4) })
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)
	g := c.RegisterGauge("level", "Level.", "variant").WithLabelValues("x")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Add(-1)

	assert.Contains(t, scrape(t, c), `test_unit_level{variant="x"} 4`)
}

func TestRegisterHistogram_DefaultBuckets(t *testing.T) {
	c := newTestCollector(t)
	c.RegisterHistogram("latency_seconds", "Latency.", nil).WithLabelValues().Observe(0.02)

	out := scrape(t, c)
	assert.Contains(t, out, `test_unit_latency_seconds_bucket{le="0.025"} 1`)
	assert.Contains(t, out, "test_unit_latency_seconds_count 1")
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	h := c.RegisterHistogram("timer_seconds", "Timer.", nil).WithLabelValues()
	timer := NewTimer(h)
	time.Sleep(5 * time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.Contains(t, scrape(t, c), "test_unit_timer_seconds_count 1")
	assert.NotPanics(t, func() { NewTimer(nil).ObserveDuration() })
}

func TestConcurrentRegistration(t *testing.T) {
	c := newTestCollector(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RegisterCounter("shared_total", "Shared.").WithLabelValues().Inc()
		}()
	}
	wg.Wait()

	assert.Contains(t, scrape(t, c), "test_unit_shared_total 16")
}

func TestMustRegisterAndUnregister(t *testing.T) {
	c := newTestCollector(t)
	custom := prometheus.NewCounter(prometheus.CounterOpts{Name: "custom_total", Help: "Custom."})
	c.MustRegister(custom)
	custom.Inc()
	assert.Contains(t, scrape(t, c), "custom_total 1")

	assert.True(t, c.Unregister(custom))
	assert.NotContains(t, scrape(t, c), "custom_total")
}

//Personal.AI order the ending
