package metrics

import (
	"net/http"
	"time"

	"commerce-agent/internal/application/port/output"
	"commerce-agent/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ output.MetricsPort = (*Tracker)(nil)

const namespace = "commerce_agent"

// Tracker records interpreter latency, chosen actions and plan outcomes.
type Tracker struct {
	registry *prometheus.Registry

	interpreterCalls    *prometheus.CounterVec
	interpreterDuration *prometheus.HistogramVec
	steps               *prometheus.CounterVec
	plans               *prometheus.CounterVec
	planSteps           prometheus.Histogram
	planDuration        *prometheus.HistogramVec
}

// NewTracker registers the collectors on reg. A nil reg gets a fresh registry.
func NewTracker(reg *prometheus.Registry) *Tracker {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Tracker{
		registry: reg,
		interpreterCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interpreter_calls_total",
				Help:      "Page interpreter calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		interpreterDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "interpreter_call_duration_seconds",
				Help:      "Page interpreter call latency",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		steps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_steps_total",
				Help:      "Actions chosen by the plan loop",
			},
			[]string{"action"},
		),
		plans: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_total",
				Help:      "Finished plan runs by end state",
			},
			[]string{"state"},
		),
		planSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_length_steps",
				Help:      "Number of steps per finished plan",
				Buckets:   prometheus.LinearBuckets(1, 2, 10),
			},
		),
		planDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plan_duration_seconds",
				Help:      "Wall time per finished plan",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
			[]string{"state"},
		),
	}
}

func (t *Tracker) ObserveInterpreterCall(operation string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	t.interpreterCalls.WithLabelValues(operation, status).Inc()
	t.interpreterDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (t *Tracker) ObserveStep(action entity.ActionName) {
	t.steps.WithLabelValues(action.String()).Inc()
}

func (t *Tracker) ObservePlan(state entity.PlanState, steps int, d time.Duration) {
	t.plans.WithLabelValues(string(state)).Inc()
	t.planSteps.Observe(float64(steps))
	t.planDuration.WithLabelValues(string(state)).Observe(d.Seconds())
}

func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the tracker's registry in the Prometheus text format.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}
