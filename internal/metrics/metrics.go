package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatmsg_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_messages_created_total",
			Help: "Total messages stored",
		},
		[]string{"sender"},
	)

	MessagesListed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_message_list_requests_total",
			Help: "Total list requests answered with messages",
		},
		[]string{"search"}, // "true" when a query filter was supplied
	)

	RequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_request_errors_total",
			Help: "Total error responses by error code",
		},
		[]string{"code"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatmsg_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatmsg_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
		[]string{"backend", "op"},
	)
)
