package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_http_requests_total",
			Help: "Total number of HTTP requests processed by the collaboration service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collab_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "collab_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	wsDroppedClientsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_ws_dropped_clients_total",
			Help: "Clients disconnected because their send buffer was full.",
		},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_messages_sent_total",
			Help: "Chat messages persisted, by target kind.",
		},
		[]string{"kind"},
	)
	claimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collab_claims_total",
			Help: "Claim attempts by outcome.",
		},
		[]string{"outcome"},
	)
	itemsClaimedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_items_claimed_total",
			Help: "Queue items handed out to users.",
		},
	)
	queueItemsAddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_queue_items_added_total",
			Help: "Items appended to team queues.",
		},
	)
	reconciledItemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_reconciled_items_total",
			Help: "Stale queue rows removed by the reconcile pass.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "collab_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedClientsTotal,
		messagesSentTotal,
		claimsTotal,
		itemsClaimedTotal,
		queueItemsAddedTotal,
		reconciledItemsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// raw paths would put message and item ids into label values
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncWSDropped() {
	wsDroppedClientsTotal.Inc()
}

func IncMessageSent(kind string) {
	messagesSentTotal.WithLabelValues(kind).Inc()
}

// ObserveClaim records a claim attempt. items is the number handed out.
func ObserveClaim(outcome string, items int) {
	claimsTotal.WithLabelValues(outcome).Inc()
	if items > 0 {
		itemsClaimedTotal.Add(float64(items))
	}
}

func AddQueueItems(n int) {
	queueItemsAddedTotal.Add(float64(n))
}

func AddReconciled(n int) {
	reconciledItemsTotal.Add(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
