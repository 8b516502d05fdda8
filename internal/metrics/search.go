package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Search orchestration metrics.
var (
	SearchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedsearch",
			Name:      "search_runs_total",
			Help:      "Search executor runs by outcome",
		},
		[]string{"outcome"}, // completed / failed / skipped / superseded / error
	)

	ProviderStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedsearch",
			Name:      "provider_steps_total",
			Help:      "Provider execution steps by provider and outcome",
		},
		[]string{"provider", "outcome"}, // ok / empty / timeout / error
	)

	ProviderStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fedsearch",
			Name:      "provider_step_duration_seconds",
			Help:      "Provider execution step duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider"},
	)

	MixerInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedsearch",
			Name:      "mixer_invocations_total",
			Help:      "Mixer invocations by mixer and outcome",
		},
		[]string{"mixer", "outcome"},
	)

	DispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fedsearch",
			Name:      "dispatch_queue_depth",
			Help:      "Tasks waiting in the dispatcher queue",
		},
	)

	DispatchTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fedsearch",
			Name:      "dispatch_tasks_total",
			Help:      "Dispatched tasks by kind and result",
		},
		[]string{"kind", "result"}, // queued / rejected / ok / error
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search orchestration metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRunsTotal)
	prometheus.MustRegister(ProviderStepsTotal)
	prometheus.MustRegister(ProviderStepDuration)
	prometheus.MustRegister(MixerInvocationsTotal)
	prometheus.MustRegister(DispatchQueueDepth)
	prometheus.MustRegister(DispatchTasksTotal)
	searchMetricsRegistered = true
}

// ObserveProviderStep records one provider step.
func ObserveProviderStep(provider, outcome string, d time.Duration) {
	ProviderStepsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderStepDuration.WithLabelValues(provider).Observe(d.Seconds())
}
