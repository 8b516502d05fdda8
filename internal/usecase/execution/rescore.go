package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

// Rescore re-applies relevancy processing to the stored records of a RESCORING search
// and returns it to a _READY status. Providers are not queried again.
// A search with no records completes as a no-op.
func (e *Executor) Rescore(ctx context.Context, id string) error {
	log := e.logger.With(zap.String("search_id", id))

	s, err := e.searches.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load search: %w", err)
	}
	if s.Status() != status.Rescoring {
		log.Debug("Search not RESCORING, rescore skipped", zap.String("status", string(s.Status())))
		return nil
	}
	generation := s.Generation()

	recs, err := e.results.ListBySearch(ctx, id)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	rescored := make([]result.Record, 0, len(recs))
	count := 0
	for _, rec := range recs {
		items := rec.Items()
		if e.relevancy != nil && len(items) > 0 {
			items, err = e.relevancy.Process(ctx, s.Query(), items)
			if err != nil {
				log.Warn("Relevancy processing failed", zap.String("provider", rec.ProviderID()), zap.Error(err))
				items = rec.Items()
			}
		}
		count += len(items)
		rescored = append(rescored, rec.WithItems(items))
	}

	release, err := e.locker.Acquire(ctx, LockKey(id))
	if err != nil {
		return fmt.Errorf("lock search: %w", err)
	}
	defer release()

	cur, err := e.searches.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("reload search: %w", err)
	}
	if cur.Generation() != generation || cur.Status() != status.Rescoring {
		log.Info("Search changed during rescore, discarding")
		return nil
	}

	if err := e.results.SaveAll(ctx, rescored); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	if err := cur.Advance(status.RescoreDone(count, len(cur.FailedProviders()) > 0)); err != nil {
		return err
	}
	if err := e.searches.Save(ctx, cur); err != nil {
		return fmt.Errorf("save search: %w", err)
	}
	log.Info("Search rescored", zap.Int("records", len(rescored)), zap.Int("items", count))
	return nil
}
