package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "cachebuild"

// Build steps run for up to hours; DefBuckets tops out at 10s.
var stepBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600, 7200, 14400}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once            sync.Once
	reg             *prom.Registry
	stepDuration    *prom.HistogramVec
	timeoutFraction *prom.HistogramVec
	stepOutcomes    *prom.CounterVec
	stageDuration   *prom.HistogramVec
	runDuration     *prom.HistogramVec
	runOutcomes     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   stepBuckets,
		}, []string{"step"})
		pr.timeoutFraction = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_timeout_fraction",
			Help:      "Fraction of the step timeout consumed",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"step"})
		pr.stepOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_outcomes_total",
			Help:      "Step outcome counts",
		}, []string{"step", "outcome"})
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of orchestrator stages",
			Buckets:   stepBuckets,
		}, []string{"stage"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration per cache mode",
			Buckets:   stepBuckets,
		}, []string{"mode"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by cache mode and final state",
		}, []string{"mode", "outcome"})
		reg.MustRegister(pr.stepDuration, pr.timeoutFraction, pr.stepOutcomes, pr.stageDuration, pr.runDuration, pr.runOutcomes)
	})
	return pr
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.reg
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveTimeoutFraction(step string, fraction float64) {
	if p == nil || p.timeoutFraction == nil {
		return
	}
	p.timeoutFraction.WithLabelValues(step).Observe(fraction)
}

func (p *PrometheusRecorder) IncStepOutcome(step string, outcome OutcomeLabel) {
	if p == nil || p.stepOutcomes == nil {
		return
	}
	p.stepOutcomes.WithLabelValues(step, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(mode string, d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(mode, outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(mode, outcome).Inc()
}
