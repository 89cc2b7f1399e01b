package operations

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// runMetrics holds the prometheus instruments for analysis runs
type runMetrics struct {
	runs              *prometheus.CounterVec
	duration          prometheus.Histogram
	insightsGenerated prometheus.Counter
	queueDepth        prometheus.Gauge
	enqueueRejections *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsInstance *runMetrics
)

// metrics returns the process-wide run metrics, creating them on first use
func metrics() *runMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &runMetrics{
			runs: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "datapulse_processing_runs_total",
				Help: "Total number of analysis runs by terminal status",
			}, []string{"status"}),
			duration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "datapulse_processing_duration_seconds",
				Help:    "Wall clock duration of analysis runs",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
			insightsGenerated: promauto.NewCounter(prometheus.CounterOpts{
				Name: "datapulse_insights_generated_total",
				Help: "Total number of insights kept after ranking",
			}),
			queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "datapulse_processing_queue_depth",
				Help: "Number of runs waiting in the processing queue",
			}),
			enqueueRejections: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "datapulse_processing_enqueue_rejections_total",
				Help: "Total number of rejected enqueue attempts by reason",
			}, []string{"reason"}),
		}
	})
	return metricsInstance
}
