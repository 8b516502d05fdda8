package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/fedsearch/internal/db/memory"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
)

const testPrefix = "fs:"

// mockStore delegates to an in-memory store unless a function field overrides the call.
type mockStore struct {
	*memory.Store
	setFn      func(ctx context.Context, key string, value []byte) error
	smembersFn func(ctx context.Context, key string) ([]string, error)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return m.Store.Set(ctx, key, value)
}

func (m *mockStore) SMembers(ctx context.Context, key string) ([]string, error) {
	if m.smembersFn != nil {
		return m.smembersFn(ctx, key)
	}
	return m.Store.SMembers(ctx, key)
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{Store: memory.New()}
	return New(ms, testPrefix), ms
}

func testSearch(t *testing.T, id, owner string) domsearch.Search {
	t.Helper()
	s, err := domsearch.New(id, owner, "knowledge management", []string{"web", "news"}, 10, "RelevancyMixer")
	if err != nil {
		t.Fatalf("new search: %v", err)
	}
	return s
}
