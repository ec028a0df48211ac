package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muniquery_analysis_executions_total",
		Help: "Analysis executions by analysis and data source path.",
	}, []string{"analysis", "source"})

	executionErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "muniquery_analysis_errors_total",
		Help: "Failed analysis executions by analysis.",
	}, []string{"analysis"})

	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muniquery_cache_hits_total",
		Help: "Result cache hits.",
	})

	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "muniquery_cache_misses_total",
		Help: "Result cache misses.",
	})
)
