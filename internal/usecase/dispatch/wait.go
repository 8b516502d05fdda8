package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

// StatusReader loads a search for polling.
type StatusReader interface {
	Get(ctx context.Context, id string) (domsearch.Search, error)
}

// Gate blocks callers for a bounded time while background work progresses.
type Gate struct {
	searches StatusReader
	interval time.Duration
}

// NewGate creates a poll-wait gate.
func NewGate(searches StatusReader, interval time.Duration) *Gate {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Gate{searches: searches, interval: interval}
}

// Wait polls the search until it is mixable or FAILED, the budget runs out,
// or ctx is done. It returns the last status seen. Running out of budget is not
// an error: callers must be ready for a status that is still in progress.
func (g *Gate) Wait(ctx context.Context, id string, budget time.Duration) (status.Status, error) {
	return g.WaitUntil(ctx, id, budget, status.Status.IsSettled)
}

// WaitUntil is Wait with a caller-supplied stop condition.
func (g *Gate) WaitUntil(
	ctx context.Context, id string, budget time.Duration, done func(status.Status) bool,
) (status.Status, error) {
	deadline := time.Now().Add(budget)
	var last status.Status

	for {
		s, err := g.searches.Get(ctx, id)
		if err != nil {
			return last, fmt.Errorf("poll search: %w", err)
		}
		last = s.Status()
		if done(last) {
			return last, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last, nil
		}
		wait := min(g.interval, remaining)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return last, nil
		case <-t.C:
		}
	}
}

// Retry calls check up to attempts times, sleeping interval between calls,
// until check reports done. It returns domain.ErrNotReady once attempts run out.
func Retry(ctx context.Context, attempts int, interval time.Duration, check func(context.Context) (bool, error)) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", domain.ErrNotReady, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("not ready after %d attempts: %w", attempts, domain.ErrNotReady)
}
