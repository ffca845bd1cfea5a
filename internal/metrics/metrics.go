// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emotune_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotune_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Recommendations
	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_recommendations_total",
			Help: "Total number of ranking calls",
		},
		[]string{"emotion", "mode"},
	)

	RecommendationSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotune_recommendation_size",
			Help:    "Number of tracks returned per ranking call",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 50},
		},
	)

	// Feedback
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_interactions_total",
			Help: "Total number of interaction events by action and outcome",
		},
		[]string{"action", "result"},
	)

	// Realtime
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "emotune_active_sessions",
			Help: "Current number of open realtime sessions",
		},
	)

	// Media
	MediaBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_media_bytes_served_total",
			Help: "Total audio bytes written to clients",
		},
		[]string{"kind"}, // "full", "partial"
	)

	// Library
	IndexedTracks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "emotune_indexed_tracks",
			Help: "Number of tracks in the catalog per category",
		},
		[]string{"emotion"},
	)

	ProbeJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_probe_jobs_total",
			Help: "Duration probe jobs by outcome",
		},
		[]string{"result"}, // "ok", "error", "dropped"
	)

	// Detector
	DetectorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emotune_detector_requests_total",
			Help: "Emotion detector calls by outcome",
		},
		[]string{"result"},
	)

	DetectorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "emotune_detector_request_duration_seconds",
			Help:    "Emotion detector round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordAPIRequest records one finished API request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

func RecordRecommendation(emotion, mode string, size int) {
	RecommendationsServed.WithLabelValues(emotion, mode).Inc()
	RecommendationSize.Observe(float64(size))
}

func RecordInteraction(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	InteractionsRecorded.WithLabelValues(action, result).Inc()
}

func RecordMediaBytes(partial bool, n int64) {
	kind := "full"
	if partial {
		kind = "partial"
	}
	MediaBytesServed.WithLabelValues(kind).Add(float64(n))
}

// SetIndexedTracks replaces the per-category track gauges.
func SetIndexedTracks(counts map[string]int) {
	IndexedTracks.Reset()
	for emotion, n := range counts {
		IndexedTracks.WithLabelValues(emotion).Set(float64(n))
	}
}

func RecordProbe(result string) {
	ProbeJobs.WithLabelValues(result).Inc()
}

func RecordDetectorRequest(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DetectorRequests.WithLabelValues(result).Inc()
	DetectorDuration.Observe(duration.Seconds())
}
