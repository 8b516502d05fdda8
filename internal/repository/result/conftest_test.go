package result

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/db/memory"
	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
)

const testPrefix = "fs:"

type mockStore struct {
	*memory.Store
	delFn func(ctx context.Context, keys ...string) error
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return m.Store.Del(ctx, keys...)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{Store: memory.New()}
	return New(ms, testPrefix), ms
}

func testRecord(id, searchID, owner, providerID string, createdAt int64) domresult.Record {
	items := []domresult.Item{
		{
			Title:   "Knowledge management",
			URL:     "https://example.org/km",
			Body:    "An overview of knowledge management.",
			Date:    time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
			Payload: map[string]any{"lang": "en"},
			Score:   1.5,
			Explain: map[string]any{"hits": float64(2)},
		},
		{Title: "No date", URL: "https://example.org/x"},
	}
	return domresult.Reconstruct(id, searchID, owner, providerID, "Provider "+providerID, items, 42, createdAt, createdAt)
}
