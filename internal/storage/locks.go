package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultLockTimeout bounds how long an operation waits for a resource token
// before failing with ErrResourceBusy.
const DefaultLockTimeout = 5 * time.Second

// resourceLocks hands out one weight-1 semaphore per logical resource key so
// read-modify-write sequences on the same key are totally ordered while
// operations on distinct keys proceed independently.
type resourceLocks struct {
	mu      sync.Mutex
	tokens  map[string]*semaphore.Weighted
	timeout time.Duration
}

func newResourceLocks(timeout time.Duration) *resourceLocks {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &resourceLocks{
		tokens:  make(map[string]*semaphore.Weighted),
		timeout: timeout,
	}
}

func (l *resourceLocks) token(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.tokens[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.tokens[key] = sem
	}
	return sem
}

// acquire blocks until the key's token is held, the caller's context is
// cancelled, or the timeout elapses. The returned release function is safe to
// call exactly once and must run on every exit path.
func (l *resourceLocks) acquire(ctx context.Context, key string) (func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	sem := l.token(key)
	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		}
		return nil, fmt.Errorf("acquire %s: %w", key, ErrResourceBusy)
	}
	return func() { sem.Release(1) }, nil
}

func videoKey(id string) string { return "video:" + id }

const (
	profilesKey  = "profiles"
	usernamesKey = "usernames"
)
