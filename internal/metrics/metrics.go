// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featureboard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "featureboard_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	UploadsStaged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "featureboard_uploads_staged_total",
			Help: "Images uploaded to temporary storage",
		},
	)

	UploadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featureboard_uploads_rejected_total",
			Help: "Uploads rejected before reaching storage",
		},
		[]string{"reason"}, // "size", "type"
	)

	UploadsPromoted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featureboard_uploads_promoted_total",
			Help: "Temporary images promoted to permanent storage",
		},
		[]string{"result"},
	)

	TempObjectsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "featureboard_temp_objects_swept_total",
			Help: "Expired temporary objects removed by the sweep",
		},
	)

	SweepLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "featureboard_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed temp sweep",
		},
	)

	VotesToggled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "featureboard_votes_toggled_total",
			Help: "Vote toggles by resulting action",
		},
		[]string{"action"},
	)
)

// RecordAPIRequest records one served request.
func RecordAPIRequest(method, route string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
