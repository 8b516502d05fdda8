package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/fedsearch/internal/db"
)

// IncrBy runs INCRBY and, with a ttl, EXPIRE NX in one round-trip.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	cmds := rueidis.Commands{s.b().Incrby().Key(key).Increment(delta).Build()}
	if ttl > 0 {
		cmds = append(cmds, s.b().Expire().Key(key).Seconds(int64(ttl/time.Second)).Nx().Build())
	}
	res := s.client.DoMulti(ctx, cmds...)
	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	if len(res) > 1 {
		if err := res[1].Error(); err != nil {
			return 0, &db.Error{Op: db.OpIncrBy, Err: err}
		}
	}
	return n, nil
}
