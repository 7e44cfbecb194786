package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory_service",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Number of asset lifecycle operations, labeled by action.",
	}, []string{"action"})

	importRowCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inventory_service",
		Subsystem: "importer",
		Name:      "rows_total",
		Help:      "Number of import rows processed, labeled by result.",
	}, []string{"result"})

	importBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inventory_service",
		Subsystem: "importer",
		Name:      "batch_duration_seconds",
		Help:      "Time spent reconciling one import batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	activityAppendGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "inventory_service",
		Subsystem: "audit",
		Name:      "last_activity_appended_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity record appended.",
	})
)

func init() {
	prometheus.MustRegister(transitionCounter, importRowCounter, importBatchDuration, activityAppendGauge)
}

// RecordTransition counts one lifecycle operation.
func RecordTransition(action string) {
	transitionCounter.WithLabelValues(action).Inc()
}

// RecordImportRows counts processed rows by result.
func RecordImportRows(result string, count int) {
	if count <= 0 {
		return
	}
	importRowCounter.WithLabelValues(result).Add(float64(count))
}

// ObserveImportBatch records the duration of one import batch.
func ObserveImportBatch(d time.Duration) {
	importBatchDuration.Observe(d.Seconds())
}

// RecordActivityAppended updates the audit watermark gauge.
func RecordActivityAppended(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityAppendGauge.Set(float64(ts.Unix()))
}
