package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "loadprofile_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	warningsTotal   *prometheus.CounterVec
	channelsAligned prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	sinkWrites *prometheus.CounterVec
)

// Init registers metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "consolidation_runs_total",
				Help: "Total consolidation runs by result",
			},
			[]string{"result"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "consolidation_run_latency_seconds",
				Help:    "Consolidation run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		warningsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "consolidation_warnings_total",
				Help: "Total run warnings by kind",
			},
			[]string{"kind"},
		)
		channelsAligned = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "channels_aligned_total",
				Help: "Total uploaded channels aligned to a grid",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total table exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Table export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		sinkWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_writes_total",
				Help: "Total time-series sink writes by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			runTotal,
			runLatency,
			warningsTotal,
			channelsAligned,
			exportTotal,
			exportLatency,
			sinkWrites,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records run duration and result.
func ObserveRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if runTotal != nil {
		runTotal.WithLabelValues(result).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncWarning counts one run warning.
func IncWarning(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if warningsTotal != nil {
		warningsTotal.WithLabelValues(kind).Inc()
	}
}

// AddChannels adds aligned channels.
func AddChannels(count int) {
	if count <= 0 {
		return
	}
	if channelsAligned != nil {
		channelsAligned.Add(float64(count))
	}
}

// ObserveExport records export duration by format and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncSinkWrite counts one sink write.
func IncSinkWrite(result string) {
	if result == "" {
		result = resultSuccess
	}
	if sinkWrites != nil {
		sinkWrites.WithLabelValues(result).Inc()
	}
}

// Recorder adapts the package functions to the consolidation service.
type Recorder struct{}

func (Recorder) ObserveRun(result string, duration time.Duration) { ObserveRun(result, duration) }
func (Recorder) IncWarning(kind string)                           { IncWarning(kind) }
func (Recorder) AddChannels(count int)                            { AddChannels(count) }
func (Recorder) IncSinkWrite(result string)                       { IncSinkWrite(result) }
