// Package rate limita requests por clave con ventana fija.
// Backends: redis (INCR + EXPIRE, compartido entre nodos) y memory (go-cache).
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Result es el resultado de una consulta al limiter.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter decide si una clave puede seguir consumiendo su ventana.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Config de un limiter de ventana fija.
type Config struct {
	Prefix string
	Max    int
	Window time.Duration
	Now    func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "rl:"
	}
	if c.Max <= 0 {
		c.Max = 30
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// windowKey arma la clave de la ventana actual y devuelve cuánto le queda.
func (c Config) windowKey(key string) (string, time.Duration) {
	now := c.Now().UTC()
	start := now.Truncate(c.Window)
	k := fmt.Sprintf("%s%s:%d", c.Prefix, strings.ReplaceAll(key, " ", "_"), start.Unix())
	return k, start.Add(c.Window).Sub(now)
}

func (c Config) result(hits int64, ttl time.Duration) Result {
	max := int64(c.Max)
	res := Result{Allowed: hits <= max, CurrentHits: hits, WindowTTL: ttl}
	if remaining := max - hits; remaining > 0 {
		res.Remaining = remaining
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = c.Window
		}
	}
	return res
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE).
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg.withDefaults()}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey, left := l.cfg.windowKey(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	window := ttl.Val()
	// primer hit: la key nace sin expiración
	if incr.Val() == 1 || window < 0 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return Result{}, err
		}
		window = left
	}
	return l.cfg.result(incr.Val(), window), nil
}

// MemoryLimiter cuenta hits en go-cache. Sólo vale para un nodo.
type MemoryLimiter struct {
	c   *gocache.Cache
	cfg Config
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.withDefaults()
	return &MemoryLimiter{c: gocache.New(cfg.Window, cfg.Window), cfg: cfg}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	k, left := l.cfg.windowKey(key)
	// Add falla si ya existe; en ese caso sólo incrementamos
	_ = l.c.Add(k, int64(0), l.cfg.Window)
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return l.cfg.result(hits, left), nil
}
