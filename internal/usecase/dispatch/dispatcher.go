package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
	"github.com/kailas-cloud/fedsearch/internal/usecase/execution"
)

// ErrDispatcherClosed is returned by Schedule after Stop.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// TaskKind selects what a worker does with a search id.
type TaskKind string

// Task kinds.
const (
	TaskSearch  TaskKind = "search"
	TaskRescore TaskKind = "rescore"
)

// Task is one unit of background work.
type Task struct {
	Kind     TaskKind
	SearchID string
}

// Executor is the background work the dispatcher runs.
type Executor interface {
	Run(ctx context.Context, id string) (execution.RunOutcome, error)
	Rescore(ctx context.Context, id string) error
}

// Dispatcher is a fixed worker pool fed by a bounded queue.
// Tasks for different ids run in no particular order; per-id safety comes
// from the executor's lock and status guard.
type Dispatcher struct {
	exec    Executor
	workers int
	queue   chan Task
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a dispatcher. Call Start before scheduling.
func New(exec Executor, workers, queueSize int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Dispatcher{
		exec:    exec,
		workers: workers,
		queue:   make(chan Task, queueSize),
		logger:  logger,
	}
}

// Start launches the workers. Tasks run with a context derived from ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.logger.Info("Dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.queue)))
}

// Schedule enqueues a task and returns without waiting for it.
func (d *Dispatcher) Schedule(t Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- t:
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "queued").Inc()
		return nil
	default:
		metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "rejected").Inc()
		return fmt.Errorf("schedule %s %s: %w", t.Kind, t.SearchID, domain.ErrQueueFull)
	}
}

// Healthy reports whether the dispatcher accepts work right now.
func (d *Dispatcher) Healthy() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	switch {
	case d.closed:
		return ErrDispatcherClosed
	case !d.started:
		return errors.New("dispatcher not started")
	case cap(d.queue) > 0 && len(d.queue) == cap(d.queue):
		return domain.ErrQueueFull
	}
	return nil
}

// Stop stops accepting tasks, drains the queue and waits for the workers.
// Cancelling the Start context aborts in-flight tasks instead of draining.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		d.wg.Wait()
		d.cancel()
	}
	d.logger.Info("Dispatcher stopped")
}

func (d *Dispatcher) worker(ctx context.Context, n int) {
	defer d.wg.Done()
	for t := range d.queue {
		metrics.DispatchQueueDepth.Set(float64(len(d.queue)))
		if ctx.Err() != nil {
			d.logger.Warn("Dropping task, dispatcher context done",
				zap.String("kind", string(t.Kind)), zap.String("search_id", t.SearchID))
			continue
		}
		d.handle(ctx, n, t)
	}
}

func (d *Dispatcher) handle(ctx context.Context, n int, t Task) {
	log := d.logger.With(
		zap.Int("worker", n),
		zap.String("kind", string(t.Kind)),
		zap.String("search_id", t.SearchID),
	)
	defer func() {
		if r := recover(); r != nil {
			metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "error").Inc()
			log.Error("Task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	var err error
	switch t.Kind {
	case TaskSearch:
		var outcome execution.RunOutcome
		outcome, err = d.exec.Run(ctx, t.SearchID)
		log = log.With(zap.String("outcome", string(outcome)))
	case TaskRescore:
		err = d.exec.Rescore(ctx, t.SearchID)
	default:
		err = fmt.Errorf("unknown task kind %q", t.Kind)
	}

	switch {
	case err == nil:
		metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "ok").Inc()
		log.Debug("Task done")
	case errors.Is(err, domain.ErrFatalExecution):
		// Already recorded on the search as FAILED.
		metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "ok").Inc()
		log.Info("Task finished with failed search", zap.Error(err))
	default:
		metrics.DispatchTasksTotal.WithLabelValues(string(t.Kind), "error").Inc()
		log.Error("Task failed", zap.Error(err))
	}
}
