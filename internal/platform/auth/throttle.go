package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Throttle counts failed logins per key within a sliding-from-first-failure
// window. Once Limit failures are recorded the key is blocked until the
// window expires or Reset is called.
type Throttle interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// ThrottleKey scopes failures to one email from one client address.
func ThrottleKey(email, clientIP string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + clientIP
}

type failureEntry struct {
	count   int
	expires time.Time
}

// MemoryThrottle is the single-process Throttle used when no Redis is configured.
type MemoryThrottle struct {
	mu      sync.Mutex
	entries map[string]failureEntry
	limit   int
	window  time.Duration
	now     func() time.Time
}

func NewMemoryThrottle(limit int, window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{
		entries: make(map[string]failureEntry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (m *MemoryThrottle) Blocked(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	return ok && e.count >= m.limit, nil
}

func (m *MemoryThrottle) Fail(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		e = failureEntry{expires: m.now().Add(m.window)}
	}
	e.count++
	m.entries[key] = e
	m.sweepLocked()
	return nil
}

func (m *MemoryThrottle) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// live returns the entry for key unless it has expired. Caller holds m.mu.
func (m *MemoryThrottle) live(key string) (failureEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return e, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return failureEntry{}, false
	}
	return e, true
}

// sweepLocked drops expired entries once the map grows past a bound.
func (m *MemoryThrottle) sweepLocked() {
	if len(m.entries) < 1024 {
		return
	}
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// RedisThrottle shares failure counts across replicas through Redis. Each key
// is an INCR counter whose TTL is set on the first failure.
type RedisThrottle struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisThrottle(client *redis.Client, limit int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{
		client: client,
		prefix: "caretrail:login-failures:",
		limit:  limit,
		window: window,
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, r.prefix+key).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return n >= r.limit, nil
}

func (r *RedisThrottle) Fail(ctx context.Context, key string) error {
	k := r.prefix + key
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, k)
	// NX keeps the window anchored at the first failure.
	pipe.ExpireNX(ctx, k, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	return nil
}

func (r *RedisThrottle) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return nil
}
