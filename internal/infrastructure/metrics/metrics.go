package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partout_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "partout_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Messaging
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partout_messages_sent_total",
			Help: "Total messages accepted for delivery",
		},
		[]string{"path"}, // "http", "queued", "socket"
	)

	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "partout_conversations_started_total",
			Help: "Total conversations created",
		},
	)

	// Realtime
	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partout_realtime_events_total",
			Help: "Insert events published into the channel hub",
		},
		[]string{"source"}, // "local", "postgres", "redis"
	)

	RealtimeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partout_realtime_subscriptions",
			Help: "Live channel subscriptions",
		},
	)

	Sessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "partout_websocket_sessions",
			Help: "Open websocket sessions",
		},
	)

	// Notifications
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partout_notifications_total",
			Help: "Notification dispatch outcomes",
		},
		[]string{"outcome"}, // "shown", "replaced", "no_permission", "focused", "failed"
	)

	PermissionPrompts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partout_permission_prompts_total",
			Help: "Permission requests by result",
		},
		[]string{"result"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
