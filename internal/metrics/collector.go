// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。nil Collector 的所有记录方法都是空操作。
type Collector struct {
	// 分发指标
	dispatchesTotal *prometheus.CounterVec
	tasksSubmitted  *prometheus.CounterVec

	// 任务指标
	taskResultsTotal *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec
	documentsIndexed *prometheus.CounterVec
	renderErrors     *prometheus.CounterVec

	// worker 池与队列
	poolWorkers *prometheus.GaugeVec
	poolActive  *prometheus.GaugeVec
	poolQueued  *prometheus.GaugeVec
	queueDepth  *prometheus.GaugeVec

	// 文档编码缓冲池命中率
	encodeBufferHitRate prometheus.Gauge

	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of artifact dispatches",
		},
		[]string{"operating_system", "outcome"},
	)

	c.tasksSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_submitted_total",
			Help:      "Total number of plugin tasks handed to the worker pool",
		},
		[]string{"mode", "result"},
	)

	c.taskResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_results_total",
			Help:      "Total number of task results by terminal status",
		},
		[]string{"plugin", "status"},
	)

	c.taskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Plugin task duration in seconds, from start to stored result",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"plugin"},
	)

	c.documentsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Total number of documents written to the search index",
		},
		[]string{"plugin"},
	)

	c.renderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Total number of nodes that failed to render",
		},
		[]string{"plugin"},
	)

	c.poolWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_workers",
			Help:      "Number of live worker goroutines",
		},
		[]string{"pool"},
	)

	c.poolActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_active",
			Help:      "Number of workers running a task",
		},
		[]string{"pool"},
	)

	c.poolQueued = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_pool_queued",
			Help:      "Number of tasks waiting for a worker",
		},
		[]string{"pool"},
	)

	c.queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Number of messages waiting on the distributed task queue",
		},
		[]string{"queue"},
	)

	c.encodeBufferHitRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "encode_buffer_hit_rate",
			Help:      "Fraction of document encodes served from a pooled buffer",
		},
	)

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 📮 分发指标记录
// =============================================================================

// RecordDispatch 记录一次 artifact 分发，outcome: dispatched, rejected, failed
func (c *Collector) RecordDispatch(operatingSystem, outcome string) {
	if c == nil {
		return
	}
	c.dispatchesTotal.WithLabelValues(operatingSystem, outcome).Inc()
}

// RecordSubmit 记录一次任务提交，result: ok, failed
func (c *Collector) RecordSubmit(mode, result string) {
	if c == nil {
		return
	}
	c.tasksSubmitted.WithLabelValues(mode, result).Inc()
}

// =============================================================================
// 🔬 任务指标记录
// =============================================================================

// RecordTaskResult 记录任务终态与耗时
func (c *Collector) RecordTaskResult(plugin, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.taskResultsTotal.WithLabelValues(plugin, status).Inc()
	c.taskDuration.WithLabelValues(plugin).Observe(duration.Seconds())
}

// RecordSkipped 记录被禁用而跳过的任务，不计耗时
func (c *Collector) RecordSkipped(plugin string) {
	if c == nil {
		return
	}
	c.taskResultsTotal.WithLabelValues(plugin, "SKIPPED").Inc()
}

// RecordDocuments 记录写入的文档数与渲染错误数
func (c *Collector) RecordDocuments(plugin string, indexed, renderErrors int) {
	if c == nil {
		return
	}
	if indexed > 0 {
		c.documentsIndexed.WithLabelValues(plugin).Add(float64(indexed))
	}
	if renderErrors > 0 {
		c.renderErrors.WithLabelValues(plugin).Add(float64(renderErrors))
	}
}

// =============================================================================
// 🏊 池与队列指标
// =============================================================================

// SetPoolStats 更新 worker 池状态
func (c *Collector) SetPoolStats(pool string, workers, active, queued int) {
	if c == nil {
		return
	}
	c.poolWorkers.WithLabelValues(pool).Set(float64(workers))
	c.poolActive.WithLabelValues(pool).Set(float64(active))
	c.poolQueued.WithLabelValues(pool).Set(float64(queued))
}

// SetQueueDepth 更新分布式队列长度
func (c *Collector) SetQueueDepth(queue string, depth int64) {
	if c == nil {
		return
	}
	c.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// SetEncodeBufferHitRate 更新文档编码缓冲池命中率
func (c *Collector) SetEncodeBufferHitRate(rate float64) {
	if c == nil {
		return
	}
	c.encodeBufferHitRate.Set(rate)
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	if c == nil {
		return
	}
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
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
