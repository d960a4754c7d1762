package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_http_requests_total",
			Help: "Total number of HTTP requests processed by the delivery service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	queueEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_queue_enqueued_total",
			Help: "Total number of items enqueued into user inboxes.",
		},
		[]string{"kind"},
	)
	queueDrainedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_queue_drained_total",
			Help: "Total number of items returned by drains.",
		},
		[]string{"kind"},
	)
	janitorRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_janitor_runs_total",
			Help: "Total number of janitor runs.",
		},
		[]string{"job", "outcome"},
	)
	janitorReapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_janitor_reaped_total",
			Help: "Total number of rows removed or deactivated by the janitor.",
		},
		[]string{"job"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	amqpConsumeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_amqp_consume_errors_total",
			Help: "Total number of AMQP consume errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		queueEnqueuedTotal,
		queueDrainedTotal,
		janitorRunsTotal,
		janitorReapedTotal,
		amqpPublishErrorsTotal,
		amqpConsumeErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncEnqueued(kind string) {
	queueEnqueuedTotal.WithLabelValues(kind).Inc()
}

func AddDrained(kind string, count int) {
	queueDrainedTotal.WithLabelValues(kind).Add(float64(count))
}

func IncJanitorRun(job, outcome string) {
	janitorRunsTotal.WithLabelValues(job, outcome).Inc()
}

func AddJanitorReaped(job string, count int64) {
	janitorReapedTotal.WithLabelValues(job).Add(float64(count))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func IncAMQPConsumeError() {
	amqpConsumeErrorsTotal.Inc()
}
