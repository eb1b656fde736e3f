package uploadlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTTL          = 30 * time.Second
	defaultRetryBackoff = 100 * time.Millisecond
)

var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var redisRefreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements a lease lock shared across instances.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	backoff time.Duration
}

// NewRedisLocker constructs a RedisLocker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, ttl: defaultTTL, backoff: defaultRetryBackoff}
}

// Lock acquires the lease, retrying until ctx is done. The lease is refreshed
// in the background until the returned unlock function is called.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("upload lock redis: client not configured")
	}
	token := uuid.NewString()
	for {
		ok, errSet := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if errSet != nil {
			return nil, errSet
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.refresh(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if errDel := redisUnlockScript.Run(ctxUnlock, l.client, []string{key}, token).Err(); errDel != nil {
				log.WithError(errDel).Warnf("upload lock: release %s", key)
			}
		})
	}, nil
}

func (l *RedisLocker) refresh(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			errRefresh := redisRefreshScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Err()
			cancel()
			if errRefresh != nil {
				log.WithError(errRefresh).Warnf("upload lock: refresh %s", key)
			}
		}
	}
}
