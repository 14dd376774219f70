package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	liveSubscriptions     prometheus.Gauge
	realtimeSessions      prometheus.Gauge
	messagesSentTotal     prometheus.Counter
	reactionTogglesTotal  *prometheus.CounterVec
	receiptsMarkedTotal   prometheus.Counter
	presenceSweptTotal    prometheus.Counter
	presenceTransitions   *prometheus.CounterVec
	directChatsStartTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibely_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vibely_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibely_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		liveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vibely_realtime_subscriptions",
			Help: "Number of live topic subscriptions held by this node.",
		})

		realtimeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vibely_realtime_sessions_active",
			Help: "Number of connected websocket sessions.",
		})

		messagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibely_messages_sent_total",
			Help: "Total number of chat messages persisted.",
		})

		reactionTogglesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibely_reaction_toggles_total",
			Help: "Reaction toggles by outcome.",
		}, []string{"outcome"})

		receiptsMarkedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibely_read_receipts_marked_total",
			Help: "Number of messages transitioned to read.",
		})

		presenceSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibely_presence_swept_total",
			Help: "Number of users flipped offline by the presence sweeper.",
		})

		presenceTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibely_presence_transitions_total",
			Help: "Presence transitions by target state.",
		}, []string{"state"})

		directChatsStartTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vibely_direct_chats_started_total",
			Help: "Direct chat starts by resolution path.",
		}, []string{"path"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			liveSubscriptions,
			realtimeSessions,
			messagesSentTotal,
			reactionTogglesTotal,
			receiptsMarkedTotal,
			presenceSweptTotal,
			presenceTransitions,
			directChatsStartTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// LiveSubscriptions tracks open realtime topic subscriptions.
func LiveSubscriptions() prometheus.Gauge {
	RegisterMetrics()
	return liveSubscriptions
}

// RealtimeSessions tracks connected websocket sessions.
func RealtimeSessions() prometheus.Gauge {
	RegisterMetrics()
	return realtimeSessions
}

// MessagesSent counts persisted messages.
func MessagesSent() prometheus.Counter {
	RegisterMetrics()
	return messagesSentTotal
}

// ReactionToggles counts reaction toggles labelled added/removed.
func ReactionToggles() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionTogglesTotal
}

// ReceiptsMarked counts read-status transitions.
func ReceiptsMarked() prometheus.Counter {
	RegisterMetrics()
	return receiptsMarkedTotal
}

// PresenceSwept counts users flipped offline by the sweeper.
func PresenceSwept() prometheus.Counter {
	RegisterMetrics()
	return presenceSweptTotal
}

// PresenceTransitions counts online/offline writes.
func PresenceTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return presenceTransitions
}

// DirectChatsStarted counts direct chat starts labelled existing/fallback/created.
func DirectChatsStarted() *prometheus.CounterVec {
	RegisterMetrics()
	return directChatsStartTotal
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}
