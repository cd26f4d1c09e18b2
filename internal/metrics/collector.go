// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。
// 实现 llm.RouteObserver 与 collaboration.Observer。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 路由指标
	routerAttemptsTotal   *prometheus.CounterVec
	routerAttemptDuration *prometheus.HistogramVec

	// 协作指标
	collaborationsTotal   *prometheus.CounterVec
	collaborationRounds   prometheus.Histogram
	collaborationDuration *prometheus.HistogramVec

	// WebSocket 指标
	wsConnections prometheus.Gauge

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

var (
	sizeBuckets      = prometheus.ExponentialBuckets(100, 10, 8)
	attemptBuckets   = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}
	discussBuckets   = []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600}
	httpLabels       = []string{"method", "path"}
	databaseLabels   = []string{"database"}
	collabStateLabel = []string{"state"}
)

// NewCollector 创建指标收集器并注册到 reg，reg 为 nil 时使用默认 registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	c := &Collector{
		httpRequestsTotal:   counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		httpRequestDuration: histogram("http_request_duration_seconds", "HTTP request duration in seconds", prometheus.DefBuckets, httpLabels...),
		httpRequestSize:     histogram("http_request_size_bytes", "HTTP request size in bytes", sizeBuckets, httpLabels...),
		httpResponseSize:    histogram("http_response_size_bytes", "HTTP response size in bytes", sizeBuckets, httpLabels...),

		// outcome: success, error, skipped, fallback
		routerAttemptsTotal:   counter("router_attempts_total", "Total number of routing attempts per responder", "responder", "outcome"),
		routerAttemptDuration: histogram("router_attempt_duration_seconds", "Responder call duration in seconds", attemptBuckets, "responder"),

		collaborationsTotal: counter("collaborations_total", "Total number of collaborations by final state", collabStateLabel...),
		collaborationRounds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaboration_rounds",
			Help:      "Discussion rounds per collaboration",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),
		collaborationDuration: histogram("collaboration_duration_seconds", "Collaboration duration in seconds", discussBuckets, collabStateLabel...),

		wsConnections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Number of open room WebSocket connections",
		}),

		dbConnectionsOpen: gauge("db_connections_open", "Number of open database connections", databaseLabels...),
		dbConnectionsIdle: gauge("db_connections_idle", "Number of idle database connections", databaseLabels...),

		logger: logger.With(zap.String("component", "metrics")),
	}

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🔀 路由与协作指标记录
// =============================================================================

// ObserveRouteAttempt 记录一次路由尝试。跳过的尝试不计耗时。
func (c *Collector) ObserveRouteAttempt(responder, outcome string, duration time.Duration) {
	c.routerAttemptsTotal.WithLabelValues(responder, outcome).Inc()
	if outcome != "skipped" {
		c.routerAttemptDuration.WithLabelValues(responder).Observe(duration.Seconds())
	}
}

// ObserveCollaboration 记录一次协作的最终状态
func (c *Collector) ObserveCollaboration(state string, rounds int, duration time.Duration) {
	c.collaborationsTotal.WithLabelValues(state).Inc()
	c.collaborationRounds.Observe(float64(rounds))
	c.collaborationDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// WebSocketOpened 记录新建的房间连接
func (c *Collector) WebSocketOpened() { c.wsConnections.Inc() }

// WebSocketClosed 记录关闭的房间连接
func (c *Collector) WebSocketClosed() { c.wsConnections.Dec() }

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	case code > 0:
		return strconv.Itoa(code)
	default:
		return "unknown"
	}
}
