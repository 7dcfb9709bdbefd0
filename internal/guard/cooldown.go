package guard

import (
	"context"
	"sync"
	"time"

	platformredis "github.com/Rooyande/eclis-ninja/internal/platform/redis"
)

// Cooldown suppresses repeated admin notifications for the same key
// within a window. Implementations are best-effort: on backend errors
// the notification goes through rather than being dropped.
type Cooldown interface {
	// Allow reports whether the key is outside its cooldown window and
	// starts a new window when it is.
	Allow(ctx context.Context, key string) bool
}

// MemoryCooldown tracks cooldowns in process memory.
type MemoryCooldown struct {
	mu   sync.Mutex
	ttl  time.Duration
	last map[string]time.Time
}

var _ Cooldown = (*MemoryCooldown)(nil)

// NewMemoryCooldown creates an in-process cooldown tracker.
func NewMemoryCooldown(ttl time.Duration) *MemoryCooldown {
	return &MemoryCooldown{ttl: ttl, last: make(map[string]time.Time)}
}

func (c *MemoryCooldown) Allow(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if at, ok := c.last[key]; ok && now.Sub(at) < c.ttl {
		return false
	}
	c.last[key] = now
	return true
}

// RedisCooldown shares cooldown state across processes.
type RedisCooldown struct {
	client *platformredis.Client
	ttl    time.Duration
}

var _ Cooldown = (*RedisCooldown)(nil)

// NewRedisCooldown creates a Redis-backed cooldown tracker.
func NewRedisCooldown(client *platformredis.Client, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl}
}

func (c *RedisCooldown) Allow(ctx context.Context, key string) bool {
	ok, err := c.client.SetNX(ctx, "defender:cooldown:"+key, "1", c.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}
