package result

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kailas-cloud/fedsearch/internal/db"
	"github.com/kailas-cloud/fedsearch/internal/domain"
	domresult "github.com/kailas-cloud/fedsearch/internal/domain/result"
)

// store is the consumer interface for result records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	GetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// Repo stores result records as JSON and indexes them by search and by owner.
type Repo struct {
	store  store
	prefix string
}

// New creates a result repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

func (r *Repo) key(id string) string { return r.prefix + "result:" + id }

func (r *Repo) searchKey(searchID string) string { return r.prefix + "search:" + searchID + ":results" }

func (r *Repo) ownerKey(owner string) string { return r.prefix + "owner:" + owner + ":results" }

// Save writes one record and its index entries. Existing records are overwritten.
func (r *Repo) Save(ctx context.Context, rec domresult.Record) error {
	data, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key(rec.ID()), data); err != nil {
		return fmt.Errorf("set result %s: %w", rec.ID(), err)
	}
	if err := r.store.SAdd(ctx, r.searchKey(rec.SearchID()), rec.ID()); err != nil {
		return fmt.Errorf("index result %s by search: %w", rec.ID(), err)
	}
	if err := r.store.SAdd(ctx, r.ownerKey(rec.Owner()), rec.ID()); err != nil {
		return fmt.Errorf("index result %s by owner: %w", rec.ID(), err)
	}
	return nil
}

// SaveAll writes records in order, stopping at the first failure.
func (r *Repo) SaveAll(ctx context.Context, recs []domresult.Record) error {
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a record by id.
func (r *Repo) Get(ctx context.Context, id string) (domresult.Record, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domresult.Record{}, domain.ErrNotFound
		}
		return domresult.Record{}, fmt.Errorf("get result %s: %w", id, err)
	}
	return unmarshalRecord(data)
}

// ListBySearch returns the records of a search ordered by creation then provider.
func (r *Repo) ListBySearch(ctx context.Context, searchID string) ([]domresult.Record, error) {
	recs, err := r.listIndexed(ctx, r.searchKey(searchID))
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt() != recs[j].CreatedAt() {
			return recs[i].CreatedAt() < recs[j].CreatedAt()
		}
		return recs[i].ProviderID() < recs[j].ProviderID()
	})
	return recs, nil
}

// ListByOwner returns the owner's records, newest first.
func (r *Repo) ListByOwner(ctx context.Context, owner string) ([]domresult.Record, error) {
	recs, err := r.listIndexed(ctx, r.ownerKey(owner))
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt() != recs[j].CreatedAt() {
			return recs[i].CreatedAt() > recs[j].CreatedAt()
		}
		return recs[i].ID() < recs[j].ID()
	})
	return recs, nil
}

func (r *Repo) listIndexed(ctx context.Context, indexKey string) ([]domresult.Record, error) {
	ids, err := r.store.SMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	if len(ids) == 0 {
		return []domresult.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	blobs, err := r.store.GetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}

	out := make([]domresult.Record, 0, len(blobs))
	for i, data := range blobs {
		if data == nil {
			continue
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return nil, fmt.Errorf("parse result %s: %w", ids[i], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes one record and its index entries.
func (r *Repo) Delete(ctx context.Context, rec domresult.Record) error {
	if err := r.store.Del(ctx, r.key(rec.ID())); err != nil {
		return fmt.Errorf("del result %s: %w", rec.ID(), err)
	}
	if err := r.store.SRem(ctx, r.searchKey(rec.SearchID()), rec.ID()); err != nil {
		return fmt.Errorf("unindex result %s: %w", rec.ID(), err)
	}
	if err := r.store.SRem(ctx, r.ownerKey(rec.Owner()), rec.ID()); err != nil {
		return fmt.Errorf("unindex result %s: %w", rec.ID(), err)
	}
	return nil
}

// DeleteBySearch removes every record of a search and returns how many were removed.
func (r *Repo) DeleteBySearch(ctx context.Context, searchID string) (int, error) {
	recs, err := r.listIndexed(ctx, r.searchKey(searchID))
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(recs)+1)
	byOwner := make(map[string][]string)
	for _, rec := range recs {
		keys = append(keys, r.key(rec.ID()))
		byOwner[rec.Owner()] = append(byOwner[rec.Owner()], rec.ID())
	}
	keys = append(keys, r.searchKey(searchID))

	if err := r.store.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("del results of search %s: %w", searchID, err)
	}
	for owner, ids := range byOwner {
		if err := r.store.SRem(ctx, r.ownerKey(owner), ids...); err != nil {
			return 0, fmt.Errorf("unindex results of search %s: %w", searchID, err)
		}
	}
	return len(recs), nil
}
