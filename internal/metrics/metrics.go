package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securechat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "securechat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securechat_users_registered_total",
			Help: "Total users registered",
		},
	)

	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securechat_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // "success" or "failure"
	)

	DirectMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securechat_direct_messages_sent_total",
			Help: "Total direct messages sent",
		},
	)

	GroupMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "securechat_group_messages_sent_total",
			Help: "Total group messages sent",
		},
	)

	// Live feed metrics
	FeedEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "securechat_feed_events_published_total",
			Help: "Feed events published by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "securechat_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)
)
