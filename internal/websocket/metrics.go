package websocket

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// hubMetrics holds the prometheus instruments for hub activity
type hubMetrics struct {
	subscriptions     prometheus.Counter
	activeSubscribers prometheus.Gauge
	eventsDelivered   prometheus.Counter
	deliveryFailures  prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *hubMetrics
)

// metrics returns the process-wide hub metrics, creating them on first use
func metrics() *hubMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &hubMetrics{
			subscriptions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "datapulse_websocket_subscriptions_total",
				Help: "Total number of websocket subscriptions registered",
			}),
			activeSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "datapulse_websocket_active_subscribers",
				Help: "Current number of live websocket subscribers",
			}),
			eventsDelivered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "datapulse_websocket_events_delivered_total",
				Help: "Total number of events delivered to subscribers",
			}),
			deliveryFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "datapulse_websocket_delivery_failures_total",
				Help: "Total number of failed event deliveries",
			}),
		}
	})
	return metricsInstance
}
