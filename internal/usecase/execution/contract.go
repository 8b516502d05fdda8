package execution

import (
	"context"

	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
	"github.com/kailas-cloud/fedsearch/internal/domain/result"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
)

// SearchRepository loads and persists searches.
type SearchRepository interface {
	Get(ctx context.Context, id string) (domsearch.Search, error)
	Save(ctx context.Context, s domsearch.Search) error
}

// ResultRepository persists result records.
type ResultRepository interface {
	SaveAll(ctx context.Context, recs []result.Record) error
	ListBySearch(ctx context.Context, searchID string) ([]result.Record, error)
}

// ProviderCatalog lists known providers.
type ProviderCatalog interface {
	List(ctx context.Context) ([]domprov.Provider, error)
}

// ConnectorResolver returns the connector for a provider.
type ConnectorResolver interface {
	Resolve(p domprov.Provider) (domain.Connector, error)
}

// Locker serializes read-modify-write on one search.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Relevancy scores items against the query text, filling Score and Explain.
type Relevancy interface {
	Process(ctx context.Context, query string, items []result.Item) ([]result.Item, error)
}
