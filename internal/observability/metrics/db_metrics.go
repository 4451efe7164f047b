package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "consolidation_runs_stored",
			Help: "Stored consolidation runs",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM consolidation_runs")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "consolidation_runs_no_channels",
			Help: "Stored runs that had no usable channel",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM consolidation_runs WHERE status = 'no_channels'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("event=metrics_query_failed error=%v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
