package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("chika", reg, zap.NewNop()), reg
}

func TestNewCollector(t *testing.T) {
	collector, _ := newTestCollector(t)

	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.routerAttemptsTotal)
	assert.NotNil(t, collector.collaborationsTotal)
	assert.NotNil(t, collector.collaborationRounds)
	assert.NotNil(t, collector.wsConnections)
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("chika", reg, nil)

	assert.Panics(t, func() { NewCollector("chika", reg, nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordHTTPRequest("GET", "/health", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/health", 204, 50*time.Millisecond, 512, 0)
	collector.RecordHTTPRequest("POST", "/api/v1/rooms/x/collaborate", 503, time.Second, 10, 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/health", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/rooms/x/collaborate", "5xx")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestCollector_ObserveRouteAttempt(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.ObserveRouteAttempt("claude", "success", 2*time.Second)
	collector.ObserveRouteAttempt("claude", "error", time.Second)
	collector.ObserveRouteAttempt("gpt", "skipped", 0)
	collector.ObserveRouteAttempt("fallback", "fallback", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routerAttemptsTotal.WithLabelValues("claude", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.routerAttemptsTotal.WithLabelValues("gpt", "skipped")))
	assert.Equal(t, 4, testutil.CollectAndCount(collector.routerAttemptsTotal))
	// skipped 不记录耗时
	assert.Equal(t, 2, testutil.CollectAndCount(collector.routerAttemptDuration))
}

func TestCollector_ObserveCollaboration(t *testing.T) {
	collector, reg := newTestCollector(t)

	collector.ObserveCollaboration("resolved", 2, 3*time.Second)
	collector.ObserveCollaboration("timeout", 3, 9*time.Second)
	collector.ObserveCollaboration("single-response", 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.collaborationsTotal.WithLabelValues("resolved")))
	assert.Equal(t, 3, testutil.CollectAndCount(collector.collaborationsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	var rounds uint64
	for _, f := range families {
		if f.GetName() == "chika_collaboration_rounds" {
			rounds = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(3), rounds)
}

func TestCollector_WebSocketConnections(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.WebSocketOpened()
	collector.WebSocketOpened()
	collector.WebSocketClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.wsConnections))
}

func TestCollector_RecordDBConnections(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDBConnections("sqlite", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
			collector.ObserveRouteAttempt("ollama", "success", 500*time.Millisecond)
			collector.ObserveCollaboration("resolved", 1, time.Second)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.routerAttemptsTotal.WithLabelValues("ollama", "success")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.collaborationsTotal.WithLabelValues("resolved")))
}

func TestStatusCode(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		301: "3xx",
		404: "4xx",
		502: "5xx",
		101: "101",
		0:   "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusCode(code))
	}
}
