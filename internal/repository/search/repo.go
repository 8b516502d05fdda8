package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	domsearch "github.com/kailas-cloud/fedsearch/internal/domain/search"
)

// store is the consumer interface for searches (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo implements the search repository on a key-value store.
// Layout: <prefix>search:<id> holds JSON, <prefix>owner:<owner>:searches indexes ids.
type Repo struct {
	store  store
	prefix string
}

// New creates a search repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id string) string { return r.prefix + "search:" + id }

func (r *Repo) ownerKey(owner string) string { return r.prefix + "owner:" + owner + ":searches" }

// Save writes the search and indexes it under its owner.
func (r *Repo) Save(ctx context.Context, s domsearch.Search) error {
	data, err := marshalSearch(s)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key(s.ID()), data); err != nil {
		return fmt.Errorf("set search %s: %w", s.ID(), err)
	}
	if err := r.store.SAdd(ctx, r.ownerKey(s.Owner()), s.ID()); err != nil {
		return fmt.Errorf("index search %s: %w", s.ID(), err)
	}
	return nil
}

// Get loads a search by id.
func (r *Repo) Get(ctx context.Context, id string) (domsearch.Search, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domsearch.Search{}, domain.ErrNotFound
		}
		return domsearch.Search{}, fmt.Errorf("get search %s: %w", id, err)
	}
	return unmarshalSearch(data)
}

// List returns the owner's searches, newest first.
// Index entries pointing at missing keys are skipped.
func (r *Repo) List(ctx context.Context, owner string) ([]domsearch.Search, error) {
	ids, err := r.store.SMembers(ctx, r.ownerKey(owner))
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	if len(ids) == 0 {
		return []domsearch.Search{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	blobs, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get searches: %w", err)
	}

	out := make([]domsearch.Search, 0, len(blobs))
	for i, data := range blobs {
		if data == nil {
			continue
		}
		s, err := unmarshalSearch(data)
		if err != nil {
			return nil, fmt.Errorf("parse search %s: %w", ids[i], err)
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt() != out[j].CreatedAt() {
			return out[i].CreatedAt() > out[j].CreatedAt()
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

// Delete removes the search and its owner index entry.
func (r *Repo) Delete(ctx context.Context, s domsearch.Search) error {
	if err := r.store.Del(ctx, r.key(s.ID())); err != nil {
		return fmt.Errorf("del search %s: %w", s.ID(), err)
	}
	if err := r.store.SRem(ctx, r.ownerKey(s.Owner()), s.ID()); err != nil {
		return fmt.Errorf("unindex search %s: %w", s.ID(), err)
	}
	return nil
}
