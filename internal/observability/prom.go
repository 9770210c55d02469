package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
	InFlight         *prometheus.GaugeVec

	// store
	DbQueryDuration *prometheus.HistogramVec
	DbErrorsTotal   *prometheus.CounterVec

	// SOS fanout
	SOSTriggersTotal  prometheus.Counter
	SOSChannelsTotal  *prometheus.CounterVec
	PushBatchesTotal  *prometheus.CounterVec
	PushBatchDuration prometheus.Histogram
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raksha",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "raksha",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "raksha",
				Name:      "http_in_flight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
			[]string{"method", "route"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "raksha",
				Subsystem: "db",
				Name:      "query_duration_seconds",
				Help:      "Store operation latency (logical op, not raw query)",
				Buckets:   []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.35, 0.5, 1, 2, 5},
			},
			[]string{"op", "status"},
		),
		DbErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raksha",
				Subsystem: "db",
				Name:      "errors_total",
				Help:      "Store errors by logical op and class.",
			},
			[]string{"op", "class"},
		),
		SOSTriggersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "raksha",
				Subsystem: "sos",
				Name:      "triggers_total",
				Help:      "SOS alerts triggered.",
			},
		),
		SOSChannelsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raksha",
				Subsystem: "sos",
				Name:      "contact_channels_total",
				Help:      "Per-contact notification attempts by channel.",
			},
			[]string{"channel"}, // sms|email|push|none
		),
		PushBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "raksha",
				Subsystem: "push",
				Name:      "batches_total",
				Help:      "Push delivery batches by result.",
			},
			[]string{"result"}, // sent|failed|circuit_open
		),
		PushBatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "raksha",
				Subsystem: "push",
				Name:      "batch_duration_seconds",
				Help:      "Latency of the push provider call.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
	}
	reg.MustRegister(
		p.RequestsTotal, p.RequestsDuration, p.InFlight,
		p.DbQueryDuration, p.DbErrorsTotal,
		p.SOSTriggersTotal, p.SOSChannelsTotal, p.PushBatchesTotal, p.PushBatchDuration,
	)

	return p
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		p.InFlight.WithLabelValues(method, route).Inc()
		defer p.InFlight.WithLabelValues(method, route).Dec()
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}

// ObservePushBatch records one push provider call.
func (p *Prom) ObservePushBatch(result string, d time.Duration) {
	p.PushBatchesTotal.WithLabelValues(result).Inc()
	p.PushBatchDuration.Observe(d.Seconds())
}
