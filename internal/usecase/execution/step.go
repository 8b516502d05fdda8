package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
)

// OutcomeKind classifies a provider step.
type OutcomeKind string

// Step outcomes. Everything except OK is a provider failure.
const (
	OutcomeOK      OutcomeKind = "ok"
	OutcomeEmpty   OutcomeKind = "empty"
	OutcomeTimeout OutcomeKind = "timeout"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of querying one provider.
type Outcome struct {
	Provider domprov.Provider
	Kind     OutcomeKind
	Items    []result.Item
	Found    int
	Err      error
	Duration time.Duration
}

// Failed reports whether the outcome is a provider failure.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeOK
}

// Reason returns a short failure description for the status log.
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeTimeout:
		return fmt.Sprintf("timed out after %s", o.Duration.Round(time.Millisecond))
	case OutcomeError:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "connector error"
	case OutcomeEmpty:
		return "no results"
	default:
		return ""
	}
}

// Step executes one query against one provider. It holds no state across calls.
type Step struct {
	resolver       ConnectorResolver
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewStep creates a provider execution step.
func NewStep(resolver ConnectorResolver, defaultTimeout time.Duration, logger *zap.Logger) *Step {
	return &Step{resolver: resolver, defaultTimeout: defaultTimeout, logger: logger}
}

// Execute queries p with its own timeout. It never panics and never returns an error:
// every failure is folded into the Outcome.
func (s *Step) Execute(ctx context.Context, p domprov.Provider, query string, results int) (out Outcome) {
	out.Provider = p
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Connector panicked", zap.String("provider", p.ID()), zap.Any("panic", r))
			out.Kind = OutcomeError
			out.Err = fmt.Errorf("connector panic: %v: %w", r, domain.ErrProviderFailure)
			out.Items = nil
		}
		out.Duration = time.Since(start)
		metrics.ObserveProviderStep(p.ID(), string(out.Kind), out.Duration)
	}()

	conn, err := s.resolver.Resolve(p)
	if err != nil {
		out.Kind = OutcomeError
		out.Err = fmt.Errorf("resolve connector: %w: %w", err, domain.ErrProviderFailure)
		return out
	}

	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if pr := p.ResultsPerQuery(); pr > 0 && pr < results {
		results = pr
	}
	resp, err := conn.Execute(stepCtx, domain.ConnectorRequest{
		Query:      query,
		Results:    results,
		ProviderID: p.ID(),
	})
	if err != nil {
		out.Err = fmt.Errorf("%w: %w", err, domain.ErrProviderFailure)
		out.Kind = OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			out.Kind = OutcomeTimeout
		}
		return out
	}

	items := resp.Items
	if results > 0 && len(items) > results {
		items = items[:results]
	}
	out.Items = items
	out.Found = max(resp.Found, len(items))
	out.Kind = OutcomeOK
	if len(items) == 0 {
		out.Kind = OutcomeEmpty
	}
	return out
}
