package ratelimit

import (
	"context"
	"time"

	"github.com/distr-app/distr/internal/redisconn"
)

// Manager selects a limiter backend and enforces rate limits.
// Redis is used when reachable; otherwise limits are tracked per process.
type Manager struct {
	conn          *redisconn.Conn
	nowFn         func() time.Time
	memoryLimiter Limiter
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(conn *redisconn.Conn, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{
		conn:          conn,
		nowFn:         nowFn,
		memoryLimiter: NewMemoryLimiter(),
	}
}

// Allow checks whether the request should be allowed using the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.nowFn()
	if client, ok := m.conn.Client(ctx); ok {
		result, errAllow := NewRedisLimiter(client, m.conn.Prefix()).Allow(ctx, key, limit, window, now)
		if errAllow == nil {
			return result, nil
		}
		m.conn.Trip(errAllow)
	}
	return m.memoryLimiter.Allow(ctx, key, limit, window, now)
}
