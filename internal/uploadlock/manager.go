// Package uploadlock serialises uploads to the same (project, tag) pair.
package uploadlock

import (
	"context"

	"github.com/distr-app/distr/internal/redisconn"
)

// Locker acquires a keyed lock and returns its release function.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Manager always takes the in-process lock and, when Redis is reachable,
// an additional cross-instance lease.
type Manager struct {
	conn   *redisconn.Conn
	memory *MemoryLocker
}

// NewManager constructs a Manager. conn may be nil.
func NewManager(conn *redisconn.Conn) *Manager {
	return &Manager{conn: conn, memory: NewMemoryLocker()}
}

// Key builds the lock key for an upload target.
func Key(projectName, tag string) string {
	return projectName + "/" + tag
}

// Lock acquires the lock for key.
func (m *Manager) Lock(ctx context.Context, key string) (func(), error) {
	unlockMemory, errLock := m.memory.Lock(ctx, key)
	if errLock != nil {
		return nil, errLock
	}
	client, ok := m.conn.Client(ctx)
	if !ok {
		return unlockMemory, nil
	}
	unlockRedis, errRedis := NewRedisLocker(client).Lock(ctx, m.conn.Key("upload", key))
	if errRedis != nil {
		if ctx.Err() != nil {
			unlockMemory()
			return nil, ctx.Err()
		}
		m.conn.Trip(errRedis)
		return unlockMemory, nil
	}
	return func() {
		unlockRedis()
		unlockMemory()
	}, nil
}
