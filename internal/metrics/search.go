package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semdex",
			Name:      "searches_total",
			Help:      "Total number of semantic searches",
		},
		[]string{"outcome"}, // "ok" / "empty" / "error"
	)

	SearchKeepCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "semdex",
			Name:      "search_keep_count",
			Help:      "Results surviving the adaptive cutoff per search",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	SearchCutoffBypassedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "semdex",
			Name:      "search_cutoff_bypassed_total",
			Help:      "Searches that requested raw results without the cutoff",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchKeepCount)
	prometheus.MustRegister(SearchCutoffBypassedTotal)
	searchMetricsRegistered = true
}
