// Package embedding guards the embedding provider used for semantic relevancy.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	"github.com/kailas-cloud/fedsearch/internal/metrics"
)

// Action is what happens once a budget period is used up.
type Action string

const (
	// ActionWarn logs and lets the request through.
	ActionWarn Action = "warn"
	// ActionReject fails the request with domain.ErrEmbeddingQuotaExceeded.
	ActionReject Action = "reject"
)

// Counters persists per-period token usage.
type Counters interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
}

// Limits configures a Budget. Zero means unlimited.
type Limits struct {
	DailyTokens   int64
	MonthlyTokens int64
	Action        Action
}

// Budget caps the tokens spent per UTC day and month. Usage is kept in the
// store, so replicas sharing it share one budget.
type Budget struct {
	counters Counters
	prefix   string
	provider string
	limits   Limits
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	period  string // day key the cached usage belongs to
	loaded  bool
	daily   int64
	monthly int64
}

// NewBudget creates a budget for provider. Keys are written under prefix.
func NewBudget(counters Counters, prefix, provider string, limits Limits, logger *zap.Logger) *Budget {
	if limits.Action == "" {
		limits.Action = ActionReject
	}
	return &Budget{
		counters: counters,
		prefix:   prefix,
		provider: provider,
		limits:   limits,
		logger:   logger,
		now:      time.Now,
	}
}

func (b *Budget) dayKey(t time.Time) string {
	return b.prefix + "budget:" + b.provider + ":day:" + t.Format("2006-01-02")
}

func (b *Budget) monthKey(t time.Time) string {
	return b.prefix + "budget:" + b.provider + ":month:" + t.Format("2006-01")
}

// Check fails when a period is used up and the action is reject.
// Usage is read from the store once per day and tracked from Record after that.
func (b *Budget) Check(ctx context.Context) error {
	now := b.now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.refresh(ctx, now); err != nil {
		// Budget bookkeeping never blocks scoring.
		b.logger.Warn("Failed to load embedding budget", zap.Error(err))
	}

	over := (b.limits.DailyTokens > 0 && b.daily >= b.limits.DailyTokens) ||
		(b.limits.MonthlyTokens > 0 && b.monthly >= b.limits.MonthlyTokens)
	if !over {
		return nil
	}
	if b.limits.Action == ActionReject {
		return fmt.Errorf("%s: %d/%d daily, %d/%d monthly: %w", b.provider,
			b.daily, b.limits.DailyTokens, b.monthly, b.limits.MonthlyTokens, domain.ErrEmbeddingQuotaExceeded)
	}
	b.logger.Warn("Embedding token budget exceeded",
		zap.String("provider", b.provider),
		zap.Int64("daily_used", b.daily),
		zap.Int64("daily_limit", b.limits.DailyTokens),
		zap.Int64("monthly_used", b.monthly),
		zap.Int64("monthly_limit", b.limits.MonthlyTokens),
	)
	return nil
}

func (b *Budget) refresh(ctx context.Context, now time.Time) error {
	day := b.dayKey(now)
	if b.loaded && b.period == day {
		return nil
	}
	b.period, b.loaded = day, true
	b.daily, b.monthly = 0, 0

	var errs []error
	if n, err := b.read(ctx, day); err != nil {
		errs = append(errs, err)
	} else {
		b.daily = n
	}
	if n, err := b.read(ctx, b.monthKey(now)); err != nil {
		errs = append(errs, err)
	} else {
		b.monthly = n
	}
	b.publish()
	return errors.Join(errs...)
}

func (b *Budget) read(ctx context.Context, key string) (int64, error) {
	raw, err := b.counters.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

// Record adds spent tokens to both periods.
func (b *Budget) Record(ctx context.Context, tokens int) {
	if tokens <= 0 {
		return
	}
	now := b.now().UTC()
	day, month := b.dayKey(now), b.monthKey(now)

	// Counters outlive their period slightly so a late Check still reads them.
	daily, dErr := b.counters.IncrBy(ctx, day, int64(tokens), 48*time.Hour)
	monthly, mErr := b.counters.IncrBy(ctx, month, int64(tokens), 32*24*time.Hour)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.period != day {
		b.period, b.loaded = day, dErr == nil && mErr == nil
		b.daily, b.monthly = 0, 0
	}
	if dErr == nil {
		b.daily = daily
	} else {
		b.daily += int64(tokens)
		b.logger.Warn("Failed to persist daily embedding budget", zap.String("key", day), zap.Error(dErr))
	}
	if mErr == nil {
		b.monthly = monthly
	} else {
		b.monthly += int64(tokens)
		b.logger.Warn("Failed to persist monthly embedding budget", zap.String("key", month), zap.Error(mErr))
	}
	b.publish()
}

// Remaining returns tokens left today and this month, -1 when unlimited.
func (b *Budget) Remaining() (daily, monthly int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return remaining(b.limits.DailyTokens, b.daily), remaining(b.limits.MonthlyTokens, b.monthly)
}

func (b *Budget) publish() {
	g := metrics.EmbeddingBudgetTokensRemaining
	g.WithLabelValues(b.provider, "daily").Set(float64(remaining(b.limits.DailyTokens, b.daily)))
	g.WithLabelValues(b.provider, "monthly").Set(float64(remaining(b.limits.MonthlyTokens, b.monthly)))
}

func remaining(limit, used int64) int64 {
	if limit <= 0 {
		return -1
	}
	return max(limit-used, 0)
}
