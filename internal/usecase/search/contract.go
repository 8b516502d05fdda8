package search

import (
	"context"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
	"github.com/kailas-cloud/fedsearch/internal/usecase/dispatch"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
)

// Repository persists searches.
type Repository interface {
	Get(ctx context.Context, id string) (domsearch.Search, error)
	Save(ctx context.Context, s domsearch.Search) error
	List(ctx context.Context, owner string) ([]domsearch.Search, error)
	Delete(ctx context.Context, s domsearch.Search) error
}

// ResultPurger removes the result records of a search.
type ResultPurger interface {
	DeleteBySearch(ctx context.Context, searchID string) (int, error)
}

// Locker serializes read-modify-write on one search.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Scheduler queues background work.
type Scheduler interface {
	Schedule(t dispatch.Task) error
}

// Waiter blocks for a bounded time while a search progresses.
type Waiter interface {
	WaitUntil(ctx context.Context, id string, budget time.Duration, done func(status.Status) bool) (status.Status, error)
}

// Runner executes a search synchronously.
type Runner interface {
	Run(ctx context.Context, id string) (execution.RunOutcome, error)
}

// Mixer produces pages of mixed results.
type Mixer interface {
	Known(name string) bool
	Mix(ctx context.Context, s domsearch.Search, override string, req mix.Request) (mix.Page, error)
}
