package fedsearch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes used as the "outcome" label.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeNotReady    = "not_ready"
	outcomeRejected    = "rejected"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// outcomeOf buckets an error by the sentinel it wraps. Rejected covers caller mistakes.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrNotReady):
		return outcomeNotReady
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrUnknownMixer),
		errors.Is(err, ErrInvalidMixerArguments):
		return outcomeRejected
	case errors.Is(err, ErrQueueFull), errors.Is(err, errUnhealthy):
		return outcomeUnavailable
	default:
		return outcomeError
	}
}

type sdkMetrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fedsearch",
		Subsystem: "sdk",
		Name:      "operations_total",
		Help:      "SDK calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fedsearch",
		Subsystem: "sdk",
		Name:      "operation_duration_seconds",
		Help:      "SDK call latency. Search creation includes the create wait.",
		Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	var err error
	if calls, err = registerOrReuse(reg, calls); err != nil {
		return nil, err
	}
	if latency, err = registerOrReuse(reg, latency); err != nil {
		return nil, err
	}
	return &sdkMetrics{calls: calls, latency: latency}, nil
}

// registerOrReuse returns the collector already registered under the same
// descriptor, so several clients may share one registerer.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("fedsearch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("fedsearch: metric registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer records every public call. A nil observer does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []any{"op", op, "outcome", outcome, "elapsed", elapsed}
	switch outcome {
	case outcomeOK, outcomeNotReady:
		// Not-ready is a normal answer while providers are still running.
		o.logger.Debug("fedsearch call", attrs...)
	default:
		o.logger.Warn("fedsearch call failed", append(attrs, "error", err)...)
	}
}
