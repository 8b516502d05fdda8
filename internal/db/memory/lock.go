package memory

import (
	"context"
	"time"

	"github.com/kailas-cloud/fedsearch/internal/db"
)

// SetNX stores token at key with a TTL if the key is absent or expired.
func (s *Store) SetNX(_ context.Context, key, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, &db.Error{Op: db.OpSet, Err: db.ErrClosed}
	}
	if _, held := s.lookup(key); held {
		return false, nil
	}
	e := entry{value: []byte(token)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.kv[key] = e
	return true, nil
}

// CompareAndDelete deletes key if it still holds token.
func (s *Store) CompareAndDelete(_ context.Context, key, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, &db.Error{Op: db.OpEval, Err: db.ErrClosed}
	}
	e, ok := s.lookup(key)
	if !ok || string(e.value) != token {
		return false, nil
	}
	delete(s.kv, key)
	return true, nil
}
