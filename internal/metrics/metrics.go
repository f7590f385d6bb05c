// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeAlreadyMarked = "already_marked"
	OutcomeError         = "error"
)

// Metrics groups the collectors of one registry.
type Metrics struct {
	registry      *prometheus.Registry
	Registrations *prometheus.CounterVec
	Marks         *prometheus.CounterVec
	Exports       *prometheus.CounterVec
	Archived      *prometheus.CounterVec
	Requests      *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_registrations_total",
			Help: "Student registrations by outcome.",
		}, []string{"outcome"}),
		Marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_marks_total",
			Help: "Attendance mark attempts by outcome.",
		}, []string{"outcome"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_exports_total",
			Help: "Spreadsheet exports by outcome.",
		}, []string{"outcome"}),
		Archived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_qr_archived_total",
			Help: "QR archive jobs by outcome.",
		}, []string{"outcome"}),
		Requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations, m.Marks, m.Exports, m.Archived, m.Requests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GinMiddleware observes request latency labelled by the matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
