package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder exposes metrics through a private Prometheus registry.
type PrometheusRecorder struct {
	registry     *prometheus.Registry
	flows        *prometheus.CounterVec
	stages       *prometheus.CounterVec
	flowDuration *prometheus.HistogramVec
	rateLimited  prometheus.Counter
	events       *prometheus.CounterVec
}

// NewPrometheus creates a recorder with its own registry, including Go
// runtime and process collectors.
func NewPrometheus() *PrometheusRecorder {
	p := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockchat_flows_total",
			Help: "Total number of completed login and register flows",
		}, []string{"flow", "outcome"}),
		stages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockchat_stages_total",
			Help: "Total number of emitted trace stages",
		}, []string{"flow", "step", "status"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blockchat_flow_duration_seconds",
			Help:    "Histogram of flow latency in seconds, pacing included",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 3, 4, 5, 6, 8, 10},
		}, []string{"flow"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blockchat_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blockchat_flow_events_published_total",
			Help: "Total number of flow events sent to the event stream",
		}, []string{"result"}),
	}

	p.registry.MustRegister(
		p.flows,
		p.stages,
		p.flowDuration,
		p.rateLimited,
		p.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// IncFlow increments the flow outcome counter.
func (p *PrometheusRecorder) IncFlow(flow, outcome string) {
	p.flows.WithLabelValues(flow, outcome).Inc()
}

// ObserveStage increments the stage counter.
func (p *PrometheusRecorder) ObserveStage(flow string, step int, status string) {
	p.stages.WithLabelValues(flow, strconv.Itoa(step), status).Inc()
}

// ObserveFlowDuration records flow duration.
func (p *PrometheusRecorder) ObserveFlowDuration(flow string, duration time.Duration) {
	p.flowDuration.WithLabelValues(flow).Observe(duration.Seconds())
}

// IncRateLimited increments the rejected request counter.
func (p *PrometheusRecorder) IncRateLimited() {
	p.rateLimited.Inc()
}

// IncEventPublished counts flow event publish attempts by result.
func (p *PrometheusRecorder) IncEventPublished(result string) {
	p.events.WithLabelValues(result).Inc()
}
