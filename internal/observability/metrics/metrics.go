// Package metrics exposes the Prometheus instrumentation used across the
// HTTP layer, the workflow services and the scheduler.
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

// Provider owns the registry and the metric families.
type Provider struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	workflowTransitions *prometheus.CounterVec

	jobRuns       *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	recordFailure *prometheus.CounterVec
}

func NewProvider() *Provider {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenure_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		workflowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_workflow_transitions_total",
			Help: "Workflow status transitions by entity, from and to state.",
		}, []string{"entity", "from", "to"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_scheduler_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_scheduler_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenure_scheduler_job_duration_seconds",
			Help:    "Scheduler job run duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		recordFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenure_scheduler_record_failures_total",
			Help: "Per-record failures collected during scheduler runs.",
		}, []string{"job"}),
	}

	registry.MustRegister(
		p.httpRequests,
		p.httpDuration,
		p.workflowTransitions,
		p.jobRuns,
		p.jobErrors,
		p.jobDuration,
		p.recordFailure,
	)
	return p
}

// Handler serves the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency.
func (p *Provider) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		p.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		p.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (p *Provider) IncTransition(entity, from, to string) {
	p.workflowTransitions.WithLabelValues(entity, from, to).Inc()
}

func (p *Provider) IncJobRun(job string) {
	p.jobRuns.WithLabelValues(job).Inc()
}

func (p *Provider) IncJobError(job string) {
	p.jobErrors.WithLabelValues(job).Inc()
}

func (p *Provider) ObserveJobDuration(job string, d time.Duration) {
	p.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (p *Provider) IncRecordFailure(job string) {
	p.recordFailure.WithLabelValues(job).Inc()
}
