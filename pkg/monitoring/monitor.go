package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// CollaboratorRequests 外部协作服务调用结果：ok / rejected / unavailable
	CollaboratorRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_collaborator_requests_total",
			Help: "Outbound calls to collaborator services by outcome",
		},
		[]string{"service", "outcome"},
	)

	CollaboratorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_collaborator_request_duration_seconds",
			Help:    "Duration of outbound collaborator calls",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"service"},
	)

	// SettlementTransitions 结算记录状态迁移次数
	SettlementTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_settlement_transitions_total",
			Help: "Settlement status transitions by kind and target status",
		},
		[]string{"kind", "status"},
	)

	PurchaseOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_purchase_outcomes_total",
			Help: "Course purchase attempts by route and outcome",
		},
		[]string{"route", "outcome"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(CollaboratorRequests)
	prometheus.MustRegister(CollaboratorDuration)
	prometheus.MustRegister(SettlementTransitions)
	prometheus.MustRegister(PurchaseOutcomes)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
