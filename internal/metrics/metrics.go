package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, path, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csvgw_requests_total",
		Help: "Total HTTP requests processed.",
	}, []string{"method", "path", "status"})

	// DispatchDuration tracks upstream LLM call latency per provider.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "csvgw_dispatch_duration_seconds",
		Help:    "Time spent on upstream LLM calls.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	}, []string{"provider"})

	// UpstreamErrors counts non-2xx upstream responses per provider and status.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csvgw_upstream_errors_total",
		Help: "Upstream LLM calls that returned a non-success status.",
	}, []string{"provider", "status"})

	// TokenBudgetRejections counts requests refused before dispatch because
	// the estimated prompt exceeded the model's context window.
	TokenBudgetRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csvgw_token_budget_rejections_total",
		Help: "Requests rejected by the pre-dispatch token budget check.",
	}, []string{"model"})

	// FileBytes tracks the distribution of uploaded file sizes.
	FileBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "csvgw_file_bytes",
		Help:    "Size of uploaded CSV files in bytes.",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})
)
