package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/db"
)

// IncrBy adds delta to the decimal integer stored at key.
func (s *Store) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, &db.Error{Op: db.OpIncrBy, Err: db.ErrClosed}
	}

	e, ok := s.lookup(key)
	var cur int64
	if ok {
		n, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, &db.Error{Op: db.OpIncrBy, Err: fmt.Errorf("value at %s is not an integer", key)}
		}
		cur = n
	}
	cur += delta

	next := entry{value: []byte(strconv.FormatInt(cur, 10)), expiresAt: e.expiresAt}
	if ttl > 0 && next.expiresAt.IsZero() {
		next.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = next
	return cur, nil
}
