package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BaSui01/dumpflow/internal/metrics"
)

// =============================================================================
// 🩺 运维端点
// =============================================================================

// HealthCheck 依赖检查，返回 nil 表示健康
type HealthCheck func(ctx context.Context) error

// HealthReport /healthz 的响应体
type HealthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

const healthCheckTimeout = 3 * time.Second

// NewOpsHandler 创建 /metrics 与 /healthz 路由。
// gatherer 为 nil 时使用默认 Registry。
func NewOpsHandler(gatherer prometheus.Gatherer, collector *metrics.Collector, checks map[string]HealthCheck) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		report := runChecks(r.Context(), checks)

		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)

		collector.RecordHTTPRequest(r.Method, "/healthz", code, time.Since(start))
	})
	return mux
}

// runChecks 并发执行所有检查
func runChecks(ctx context.Context, checks map[string]HealthCheck) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}(i, checks[name])
	}
	wg.Wait()

	report := HealthReport{Status: "ok", Checks: make(map[string]string, len(names))}
	for i, name := range names {
		report.Checks[name] = results[i]
		if results[i] != "ok" {
			report.Status = "degraded"
		}
	}
	return report
}
