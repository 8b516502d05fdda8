package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedsearch/internal/db/memory"
)

type mockStore struct {
	setNXFn func(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	cadFn   func(ctx context.Context, key, token string) (bool, error)
}

func (m *mockStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return m.setNXFn(ctx, key, token, ttl)
}

func (m *mockStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	if m.cadFn != nil {
		return m.cadFn(ctx, key, token)
	}
	return true, nil
}

func TestAcquire_MutualExclusion(t *testing.T) {
	l := New(memory.New(), "fs:", time.Minute, zap.NewNop())
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "search:s1")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			release()
		}()
	}
	wg.Wait()
	if maxSeen.Load() != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen.Load())
	}
}

func TestAcquire_DifferentKeysIndependent(t *testing.T) {
	l := New(memory.New(), "fs:", time.Minute, zap.NewNop())
	ctx := context.Background()

	r1, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	defer r1()
	r2, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("acquire b: %v", err)
	}
	r2()
}

func TestAcquire_Timeout(t *testing.T) {
	l := New(memory.New(), "fs:", time.Minute, zap.NewNop())
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}
}

func TestAcquire_StoreError(t *testing.T) {
	ms := &mockStore{setNXFn: func(context.Context, string, string, time.Duration) (bool, error) {
		return false, errors.New("connection lost")
	}}
	l := New(ms, "fs:", time.Minute, zap.NewNop())
	if _, err := l.Acquire(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	var calls int
	var token string
	ms := &mockStore{
		setNXFn: func(_ context.Context, key, tok string, _ time.Duration) (bool, error) {
			if key != "fs:lock:k" {
				t.Errorf("key = %s", key)
			}
			token = tok
			return true, nil
		},
		cadFn: func(_ context.Context, _ string, tok string) (bool, error) {
			calls++
			if tok != token {
				t.Errorf("released with foreign token")
			}
			return true, nil
		},
	}
	l := New(ms, "fs:", time.Minute, zap.NewNop())
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
	release()
	if calls != 1 {
		t.Errorf("CompareAndDelete calls = %d, want 1", calls)
	}
}
