package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/distr-app/distr/internal/config"
	"github.com/distr-app/distr/internal/redisconn"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "otc:a@example.com", 3, time.Minute, now)
		if err != nil || !res.Allowed {
			t.Fatalf("request %d: expected allowed, got %+v %v", i, res, err)
		}
	}
	res, _ := limiter.Allow(ctx, "otc:a@example.com", 3, time.Minute, now.Add(10*time.Second))
	if res.Allowed {
		t.Fatalf("expected fourth request in window to be denied")
	}
	other, _ := limiter.Allow(ctx, "otc:b@example.com", 3, time.Minute, now)
	if !other.Allowed {
		t.Fatalf("keys must be limited independently")
	}
	next, _ := limiter.Allow(ctx, "otc:a@example.com", 3, time.Minute, now.Add(time.Minute))
	if !next.Allowed {
		t.Fatalf("expected a new window to allow again")
	}
}

func TestManager_FallsBackToMemory(t *testing.T) {
	factory := func(opts *redis.Options) *redis.Client {
		opts.DialTimeout = 50 * time.Millisecond
		opts.MaxRetries = -1
		return redis.NewClient(opts)
	}
	conn := redisconn.New(config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}, "rate limit", nil, factory)
	manager := NewManager(conn, nil)

	first, err := manager.Allow(context.Background(), KeyForCodeRequest("A@Example.com "), 1, time.Minute)
	if err != nil || !first.Allowed {
		t.Fatalf("expected first request allowed via memory, got %+v %v", first, err)
	}
	second, err := manager.Allow(context.Background(), KeyForCodeRequest("a@example.com"), 1, time.Minute)
	if err != nil || second.Allowed {
		t.Fatalf("expected second request denied, got %+v %v", second, err)
	}
}

func TestManager_ZeroLimitAllows(t *testing.T) {
	var manager *Manager
	res, err := manager.Allow(context.Background(), "k", 1, time.Minute)
	if err != nil || !res.Allowed {
		t.Fatalf("nil manager must allow")
	}
	if KeyForCodeRequest("  ") != "" {
		t.Fatalf("empty email must produce empty key")
	}
}
