package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "collections"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	cycles           *prom.CounterVec
	cycleDuration    prom.Histogram
	cycleRunning     prom.Gauge
	triggersRejected *prom.CounterVec
	escalations      *prom.CounterVec
	dispatchResults  *prom.CounterVec
	dispatchRetries  *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	pr := &PrometheusRecorder{
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Collections cycles by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full collections cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		cycleRunning: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "cycle_running",
			Help:      "1 while a collections cycle is running",
		}),
		triggersRejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_rejected_total",
			Help:      "Triggers dropped or rejected because a cycle was already running",
		}, []string{"trigger"}),
		escalations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "escalation_events_total",
			Help:      "Applied lifecycle transitions",
		}, []string{"from", "to"}),
		dispatchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_results_total",
			Help:      "Dispatch results by kind and status",
		}, []string{"kind", "status"}),
		dispatchRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_retries_total",
			Help:      "Transport retries after a transient delivery failure",
		}, []string{"kind"}),
	}
	reg.MustRegister(pr.cycles, pr.cycleDuration, pr.cycleRunning, pr.triggersRejected,
		pr.escalations, pr.dispatchResults, pr.dispatchRetries)
	return pr
}

func (p *PrometheusRecorder) IncCycle(trigger, outcome string) {
	p.cycles.WithLabelValues(trigger, outcome).Inc()
}

func (p *PrometheusRecorder) ObserveCycleDuration(d time.Duration) {
	p.cycleDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetCycleRunning(running bool) {
	if running {
		p.cycleRunning.Set(1)
		return
	}
	p.cycleRunning.Set(0)
}

func (p *PrometheusRecorder) IncTriggerRejected(trigger string) {
	p.triggersRejected.WithLabelValues(trigger).Inc()
}

func (p *PrometheusRecorder) IncEscalation(from, to string) {
	p.escalations.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) IncDispatchResult(kind, status string) {
	p.dispatchResults.WithLabelValues(kind, status).Inc()
}

func (p *PrometheusRecorder) IncDispatchRetry(kind string) {
	p.dispatchRetries.WithLabelValues(kind).Inc()
}

// HTTPHandler serves the metrics of reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
