package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the market's collectors on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	holdRequests   *prometheus.CounterVec
	holdStalls     *prometheus.CounterVec
	payments       *prometheus.CounterVec
	reviews        *prometheus.CounterVec
	reaped         *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		holdRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_hold_requests_total",
				Help: "Hold requests by outcome",
			},
			[]string{"outcome"},
		),
		holdStalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_hold_stalls_total",
				Help: "Stalls named in hold requests by outcome",
			},
			[]string{"outcome"},
		),
		payments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_payment_submissions_total",
				Help: "Payment submissions by result",
			},
			[]string{"result"},
		),
		reviews: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_review_decisions_total",
				Help: "Admin review decisions by resulting status",
			},
			[]string{"status"},
		),
		reaped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_reaped_rows_total",
				Help: "Expired rows removed by the cleanup job",
			},
			[]string{"kind"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_http_requests_total",
				Help: "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "market_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (r *Recorder) HoldOutcome(outcome string, stalls int) {
	r.holdRequests.WithLabelValues(outcome).Inc()
	r.holdStalls.WithLabelValues(outcome).Add(float64(stalls))
}

func (r *Recorder) PaymentOutcome(result string) {
	r.payments.WithLabelValues(result).Inc()
}

func (r *Recorder) ReviewDecision(status string) {
	r.reviews.WithLabelValues(status).Inc()
}

// Reaped matches reservation.CleanupService.OnReap.
func (r *Recorder) Reaped(holds, entries int64) {
	r.reaped.WithLabelValues("hold").Add(float64(holds))
	r.reaped.WithLabelValues("queue_entry").Add(float64(entries))
}

// Middleware counts requests per matched route; unmatched paths share one label.
func (r *Recorder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.requestLatency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
