// Package lock serializes commits on the same option. Evaluations never lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

// Locker grants exclusive access to a key until release is called.
// Acquire waits at most until ctx is done and reports a timeout as a
// contention error.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker holds one weighted semaphore per key, for single-process deployments.
type LocalLocker struct {
	timeout time.Duration

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewLocalLocker bounds every acquisition by timeout; zero waits on ctx alone.
func NewLocalLocker(timeout time.Duration) *LocalLocker {
	return &LocalLocker{timeout: timeout, sems: map[string]*semaphore.Weighted{}}
}

func (l *LocalLocker) semFor(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	return sem
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	sem := l.semFor(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, timeoutError(key, err)
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func timeoutError(key string, cause error) error {
	msg := fmt.Sprintf("timed out waiting for lock on %s", key)
	if errors.Is(cause, context.Canceled) {
		msg = fmt.Sprintf("gave up waiting for lock on %s", key)
	}
	return apperrors.Contention(apperrors.CodeLockTimeout, msg, cause)
}
