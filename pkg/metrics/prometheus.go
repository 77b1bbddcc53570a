package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	symbolsTotal *prometheus.CounterVec
	signalsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqflow_runs_total",
				Help: "Total number of analysis runs",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liqflow_run_duration_seconds",
				Help:    "Duration of analysis runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		symbolsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqflow_symbols_total",
				Help: "Total number of per-symbol analyses",
			},
			[]string{"symbol", "status"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqflow_signals_total",
				Help: "Total number of posture signals emitted",
			},
			[]string{"symbol", "signal"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liqflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordRun records the outcome and duration of one analysis run.
func (r *Recorder) RecordRun(status string, seconds float64) {
	r.runsTotal.WithLabelValues(status).Inc()
	r.runDuration.WithLabelValues(status).Observe(seconds)
}

// RecordSymbol records a per-symbol analysis outcome.
func (r *Recorder) RecordSymbol(symbol, status string) {
	r.symbolsTotal.WithLabelValues(symbol, status).Inc()
}

// RecordSignal records an emitted posture signal.
func (r *Recorder) RecordSignal(symbol string, signal string) {
	r.signalsTotal.WithLabelValues(symbol, signal).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
