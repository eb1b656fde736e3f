// Package redisconn manages a lazily connected Redis client with a failure breaker,
// shared by the components that fall back to in-memory state while Redis is down.
package redisconn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/distr-app/distr/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	breakerDuration = 30 * time.Second
	pingTimeout     = 2 * time.Second
)

// ClientFactory constructs a Redis client for the given options.
type ClientFactory func(options *redis.Options) *redis.Client

// Conn hands out a Redis client unless Redis is disabled or the breaker is open.
type Conn struct {
	cfg       config.RedisConfig
	name      string
	nowFn     func() time.Time
	newClient ClientFactory

	mu           sync.Mutex
	client       *redis.Client
	breakerUntil time.Time
}

// New constructs a Conn. name identifies the owner in log messages.
func New(cfg config.RedisConfig, name string, nowFn func() time.Time, newClient ClientFactory) *Conn {
	if nowFn == nil {
		nowFn = time.Now
	}
	if newClient == nil {
		newClient = redis.NewClient
	}
	return &Conn{cfg: cfg, name: name, nowFn: nowFn, newClient: newClient}
}

// Enabled reports whether Redis is configured.
func (c *Conn) Enabled() bool {
	return c != nil && c.cfg.Enabled && strings.TrimSpace(c.cfg.Addr) != ""
}

// Prefix returns the configured key prefix.
func (c *Conn) Prefix() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.cfg.Prefix)
}

// Client returns a connected client, or false when callers should fall back.
func (c *Conn) Client(ctx context.Context) (*redis.Client, bool) {
	if !c.Enabled() {
		return nil, false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.breakerUntil.IsZero() {
		if now.Before(c.breakerUntil) {
			return nil, false
		}
		c.breakerUntil = time.Time{}
	}
	if c.client != nil {
		return c.client, true
	}

	client := c.newClient(&redis.Options{
		Addr:     strings.TrimSpace(c.cfg.Addr),
		Password: strings.TrimSpace(c.cfg.Password),
		DB:       c.cfg.DB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		c.tripLocked(errPing, now)
		return nil, false
	}
	c.client = client
	return client, true
}

// Trip opens the breaker after a Redis failure and drops the client.
// Context cancellations are not Redis failures and are ignored.
func (c *Conn) Trip(err error) {
	if c == nil || err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tripLocked(err, c.nowFn())
}

func (c *Conn) tripLocked(err error, now time.Time) {
	if !c.breakerUntil.IsZero() && now.Before(c.breakerUntil) {
		return
	}
	c.breakerUntil = now.Add(breakerDuration)
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	log.WithError(err).Warnf("%s: redis unavailable, falling back to memory", c.name)
}

// Close releases the client.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// Key joins the prefix and parts with ':'.
func (c *Conn) Key(parts ...string) string {
	if prefix := c.Prefix(); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ":")
}
