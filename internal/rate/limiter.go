// Package rate limita el envío de SMS y OOB codes por IP. Es opcional y
// viene apagado: el emulador real no tiene cuotas.
package rate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func windowKey(prefix, key string, start time.Time) string {
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
}

func result(hits, max int64, ttl, window time.Duration) Result {
	remaining := max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{Allowed: hits <= max, Remaining: remaining, CurrentHits: hits, WindowTTL: ttl}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Duration(math.Ceil(window.Seconds())) * time.Second
		}
	}
	return res
}

// =================================================================================
// MEMORY (go-cache)
// =================================================================================

// MemoryLimiter: fixed window en proceso, las ventanas vencidas las limpia go-cache.
type MemoryLimiter struct {
	c      *gocache.Cache
	Prefix string
	Max    int64
	Window time.Duration
	Clock  clockwork.Clock
}

func NewMemoryLimiter(max int, window time.Duration, clock clockwork.Clock) *MemoryLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryLimiter{
		c:      gocache.New(window, time.Minute),
		Prefix: "rl:",
		Max:    int64(max),
		Window: window,
		Clock:  clock,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.Clock.Now().UTC()
	winStart := now.Truncate(l.Window)
	k := windowKey(l.Prefix, key, winStart)

	_ = l.c.Add(k, int64(0), l.Window) // solo el primer hit crea la entrada
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	ttl := winStart.Add(l.Window).Sub(now)
	return result(hits, l.Max, ttl, l.Window), nil
}

// =================================================================================
// REDIS
// =================================================================================

// RedisLimiter: fixed window sencillo (INCR + EXPIRE), compartido entre procesos.
type RedisLimiter struct {
	Client *rdb.Client
	Prefix string
	Max    int64
	Window time.Duration
	Clock  clockwork.Clock
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
		Clock:  clockwork.NewRealClock(),
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.Clock.Now().UTC()
	redisKey := windowKey(l.Prefix, key, now.Truncate(l.Window))

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	// expiry en el primer hit
	if incr.Val() == 1 {
		_ = l.Client.Expire(ctx, redisKey, l.Window).Err()
		ttl = l.Client.TTL(ctx, redisKey)
	}
	return result(incr.Val(), l.Max, ttl.Val(), l.Window), nil
}
