package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Trial outcomes recorded by TrialsTotal.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
)

var (
	TrialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemmbench_trials_total",
		Help: "Profiler trials by outcome",
	}, []string{"outcome"})

	MissingSamplesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemmbench_missing_samples_total",
		Help: "Trials in which a kernel pattern matched no record",
	}, []string{"kernel"})

	KernelTimeSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gemmbench_kernel_time_seconds",
		Help:    "Kernel times extracted from profiler artifacts",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12), // 1us to ~4s
	}, []string{"kernel"})

	SummaryRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gemmbench_summary_rows_total",
		Help: "Summary rows emitted by the sweep",
	})

	VerifyCasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gemmbench_verify_cases_total",
		Help: "Correctness checks by result",
	}, []string{"result"})

	VerifyDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gemmbench_verify_duration_seconds",
		Help:    "Wall time of one correctness check including the reference product",
		Buckets: prometheus.ExponentialBuckets(1e-4, 4, 10),
	})
)

// WriteTextfile dumps the default registry in the text exposition format,
// suitable for the node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
