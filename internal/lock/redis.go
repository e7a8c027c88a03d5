package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/seatwise/internal/constants"
	"github.com/julianstephens/seatwise/internal/logger"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisOptions struct {
	// Prefix namespaces lock keys.
	Prefix string
	// TTL expires a lock whose holder died.
	TTL time.Duration
	// Timeout bounds each acquisition; zero waits on ctx alone.
	Timeout    time.Duration
	RetryDelay time.Duration
}

// RedisLocker implements Locker with SET NX PX so several seatwise
// processes can share one ledger.
type RedisLocker struct {
	client redis.UniversalClient
	opts   RedisOptions
}

func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = constants.AppName + ":lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = constants.DefaultLockTTL
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = constants.DefaultLockRetryDelay
	}
	return &RedisLocker{client: client, opts: opts}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	ctx, cancel := withTimeout(ctx, l.opts.Timeout)
	defer cancel()

	redisKey := l.opts.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, timeoutError(key, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock on %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, timeoutError(key, ctx.Err())
		case <-time.After(l.opts.RetryDelay):
		}
	}
}

func (l *RedisLocker) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), l.opts.TTL)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				logger.Warn("Failed to release lock", "key", redisKey, "error", err)
			}
		})
	}
}
