// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "code"})
	HTTPDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cv_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	StatusChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_status_changes_total",
		Help: "Property status changes by new status",
	}, []string{"status"})
	FixesAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cv_fixes_accepted_total",
		Help: "Location fixes that passed the displacement filter",
	})
	FixesDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cv_fixes_discarded_total",
		Help: "Location fixes dropped by the displacement filter",
	})
	FixesDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cv_fixes_dropped_total",
		Help: "Accepted fixes not delivered to a slow subscriber",
	})
	GeofenceEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_geofence_events_total",
		Help: "Territory enter and exit events",
	}, []string{"kind"})
	GeocodeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_geocode_requests_total",
		Help: "Reverse geocode calls by result",
	}, []string{"result"})
	RouteOptimizeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cv_route_optimize_duration_ms",
		Help:    "Route optimization duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100},
	})
	SnapshotSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cv_snapshot_saves_total",
		Help: "Snapshot persistence attempts by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(StatusChangesTotal)
	prometheus.MustRegister(FixesAcceptedTotal)
	prometheus.MustRegister(FixesDiscardedTotal)
	prometheus.MustRegister(FixesDroppedTotal)
	prometheus.MustRegister(GeofenceEventsTotal)
	prometheus.MustRegister(GeocodeRequestsTotal)
	prometheus.MustRegister(RouteOptimizeDurationMs)
	prometheus.MustRegister(SnapshotSavesTotal)
}

// Handler serves every registered collector.
func Handler() http.Handler { return promhttp.Handler() }
