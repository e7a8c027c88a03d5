package lock

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/seatwise/internal/constants"
	apperrors "github.com/julianstephens/seatwise/internal/errors"
)

func testMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var inside, peak int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			release, err := l.Acquire(ctx, "option-1")
			if err != nil {
				return err
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if peak != 1 {
		t.Errorf("expected at most one holder, saw %d", peak)
	}
}

func testTimeout(t *testing.T, l Locker) {
	t.Helper()
	release, err := l.Acquire(context.Background(), "option-2")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	_, err = l.Acquire(context.Background(), "option-2")
	if !apperrors.IsRetryable(err) {
		t.Fatalf("expected contention error, got %v", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeLockTimeout {
		t.Errorf("expected LOCK_TIMEOUT code, got %v", err)
	}

	// Other keys are unaffected.
	other, err := l.Acquire(context.Background(), "option-3")
	if err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
	other()
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	t.Run("MutualExclusion", func(t *testing.T) { testMutualExclusion(t, l) })
	t.Run("Timeout", func(t *testing.T) { testTimeout(t, l) })
	t.Run("ReleaseIsIdempotent", func(t *testing.T) {
		release, err := l.Acquire(context.Background(), "option-4")
		if err != nil {
			t.Fatal(err)
		}
		release()
		release()
		again, err := l.Acquire(context.Background(), "option-4")
		if err != nil {
			t.Fatalf("re-acquire failed: %v", err)
		}
		again()
	})
	t.Run("CancelledContext", func(t *testing.T) {
		release, _ := l.Acquire(context.Background(), "option-5")
		defer release()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := l.Acquire(ctx, "option-5"); !apperrors.IsRetryable(err) {
			t.Errorf("expected contention on cancelled context, got %v", err)
		}
	})
}

// Set SEATWISE_TEST_REDIS to a redis address (e.g. localhost:6379) to run.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv(constants.EnvTestRedis)
	if addr == "" {
		t.Skip(constants.EnvTestRedis + " not set, skipping Redis lock test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis unreachable: %v", err)
	}

	l := NewRedisLocker(client, RedisOptions{
		Prefix:     "seatwise-test:" + time.Now().Format("150405.000000") + ":",
		TTL:        time.Second,
		Timeout:    500 * time.Millisecond,
		RetryDelay: 2 * time.Millisecond,
	})
	t.Run("MutualExclusion", func(t *testing.T) { testMutualExclusion(t, l) })
	t.Run("Timeout", func(t *testing.T) { testTimeout(t, l) })
	t.Run("ReleaseKeepsForeignToken", func(t *testing.T) {
		release, err := l.Acquire(context.Background(), "option-6")
		if err != nil {
			t.Fatal(err)
		}
		key := l.opts.Prefix + "option-6"
		if err := client.Set(context.Background(), key, "someone-else", time.Second).Err(); err != nil {
			t.Fatal(err)
		}
		release()
		if v, _ := client.Get(context.Background(), key).Result(); v != "someone-else" {
			t.Errorf("release removed a lock it no longer owned, value %q", v)
		}
	})
}
