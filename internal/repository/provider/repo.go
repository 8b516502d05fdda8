package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	domprov "github.com/kailas-cloud/fedsearch/internal/domain/provider"
)

// store is the consumer interface for providers (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SAdd(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo stores the provider catalog.
type Repo struct {
	store  store
	prefix string
}

// New creates a provider repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id string) string { return r.prefix + "provider:" + id }

func (r *Repo) indexKey() string { return r.prefix + "providers" }

type providerRow struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Connector       string `json:"connector"`
	Owner           string `json:"owner"`
	Active          bool   `json:"active"`
	Default         bool   `json:"default"`
	ResultsPerQuery int    `json:"results_per_query"`
	TimeoutMs       int64  `json:"timeout_ms"`
}

// Save upserts a provider.
func (r *Repo) Save(ctx context.Context, p domprov.Provider) error {
	data, err := json.Marshal(providerRow{
		ID: p.ID(), Name: p.Name(), Connector: p.Connector(), Owner: p.Owner(),
		Active: p.Active(), Default: p.Default(),
		ResultsPerQuery: p.ResultsPerQuery(), TimeoutMs: p.Timeout().Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("marshal provider: %w", err)
	}
	if err := r.store.Set(ctx, r.key(p.ID()), data); err != nil {
		return fmt.Errorf("set provider %s: %w", p.ID(), err)
	}
	if err := r.store.SAdd(ctx, r.indexKey(), p.ID()); err != nil {
		return fmt.Errorf("index provider %s: %w", p.ID(), err)
	}
	return nil
}

// Get loads a provider by id.
func (r *Repo) Get(ctx context.Context, id string) (domprov.Provider, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domprov.Provider{}, domain.ErrNotFound
		}
		return domprov.Provider{}, fmt.Errorf("get provider %s: %w", id, err)
	}
	return unmarshalProvider(data)
}

// List returns all providers sorted by id.
func (r *Repo) List(ctx context.Context) ([]domprov.Provider, error) {
	ids, err := r.store.SMembers(ctx, r.indexKey())
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	if len(ids) == 0 {
		return []domprov.Provider{}, nil
	}
	sort.Strings(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	blobs, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get providers: %w", err)
	}

	out := make([]domprov.Provider, 0, len(blobs))
	for i, data := range blobs {
		if data == nil {
			continue
		}
		p, err := unmarshalProvider(data)
		if err != nil {
			return nil, fmt.Errorf("parse provider %s: %w", ids[i], err)
		}
		out = append(out, p)
	}
	return out, nil
}

func unmarshalProvider(data []byte) (domprov.Provider, error) {
	var row providerRow
	if err := json.Unmarshal(data, &row); err != nil {
		return domprov.Provider{}, fmt.Errorf("unmarshal provider: %w", err)
	}
	return domprov.Reconstruct(
		row.ID, row.Name, row.Connector, row.Owner, row.Active, row.Default,
		row.ResultsPerQuery, time.Duration(row.TimeoutMs)*time.Millisecond,
	), nil
}
