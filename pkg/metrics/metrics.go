package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "debounced_writes_total", Help: "Debounced field-group writes by group and result."},
		[]string{"group", "result"},
	)
	RowUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "row_updates_total", Help: "Partial row updates accepted by the backend, by access path."},
		[]string{"access"},
	)
	FeedBroadcastsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "feed_broadcasts_total", Help: "Row snapshots fanned out to change-feed subscribers."},
	)
	FeedStaleDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "feed_stale_dropped_total", Help: "Snapshots dropped because a newer version was already delivered."},
	)
	FeedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "papanskor", Name: "feed_subscribers", Help: "Open change-feed connections."},
	)
	RateLimitRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "rate_limit_rejected_total", Help: "Mutations rejected by the rate limiter."},
	)
	AssetCleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "asset_cleanup_failures_total", Help: "Best-effort asset deletions that failed."},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "papanskor", Name: "http_requests_total", Help: "HTTP requests by method, route and status."},
		[]string{"method", "path", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(WritesTotal)
	reg.MustRegister(RowUpdatesTotal)
	reg.MustRegister(FeedBroadcastsTotal)
	reg.MustRegister(FeedStaleDropped)
	reg.MustRegister(FeedSubscribers)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AssetCleanupFailures)
	reg.MustRegister(HTTPRequests)
}
