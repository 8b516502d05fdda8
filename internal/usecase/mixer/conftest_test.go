package mixer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/domain/mix"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
	"github.com/kailas-cloud/fedsearch/internal/domain/search/status"
)

type mockResults struct {
	listFn func(ctx context.Context, searchID string) ([]result.Record, error)
	calls  int
}

func (m *mockResults) ListBySearch(ctx context.Context, searchID string) ([]result.Record, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, searchID)
	}
	return nil, nil
}

func recordsOf(recs ...result.Record) *mockResults {
	return &mockResults{listFn: func(context.Context, string) ([]result.Record, error) {
		return recs, nil
	}}
}

// testRecord builds a record whose items carry the given scores, titled "<provider>-<n>".
func testRecord(provider string, scores ...float64) result.Record {
	items := make([]result.Item, len(scores))
	for i, sc := range scores {
		items[i] = result.Item{
			Title:   fmt.Sprintf("%s-%d", provider, i+1),
			URL:     fmt.Sprintf("https://%s.example/%d", provider, i+1),
			Score:   sc,
			Explain: map[string]any{"terms": i},
		}
	}
	return result.Reconstruct("r-"+provider, "s1", "alice", provider, provider, items, len(items)*10, 1, 1)
}

func testSearch(st status.Status, mixer string) domsearch.Search {
	return domsearch.Reconstruct("s1", "alice", "rust vs go", nil, 10, mixer,
		st, []string{"Running 2 providers"}, 1, nil, 0, 1, 1)
}

func newTestDispatcher(results ResultReader) *Dispatcher {
	return NewDispatcher(NewDefaultRegistry(), results, "", zap.NewNop())
}

func titles(hits []mix.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Title
	}
	return out
}

func dated(rec result.Record, dates ...time.Time) result.Record {
	items := rec.Items()
	for i := range items {
		if i < len(dates) {
			items[i].Date = dates[i]
		}
	}
	return rec
}

func mustEqual(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
