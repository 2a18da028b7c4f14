package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds the bucket size and refill rate
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	// CleanupInterval is how often idle in-memory buckets are dropped
	CleanupInterval time.Duration
}

// RateLimitConfigFrom maps the security.rate_limiting section
func RateLimitConfigFrom(cfg config.RateLimitingConfig) RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: cfg.RequestsPerMinute,
		BurstSize:         cfg.Burst,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig is the stricter limit applied to login and signup
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 10, BurstSize: 5, CleanupInterval: 5 * time.Minute}
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
	Stop()
}

// ---------------------------------------------------------------------------
// In-memory token bucket
// ---------------------------------------------------------------------------

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// MemoryLimiter is a per-process token bucket limiter
type MemoryLimiter struct {
	config   RateLimitConfig
	buckets  map[string]*bucket
	mu       sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewMemoryLimiter starts a limiter and its cleanup goroutine
func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	l := &MemoryLimiter{
		config:  cfg,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go l.cleanup()
	return l
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle(10 * time.Minute)
		case <-l.stopCh:
			return
		}
	}
}

func (l *MemoryLimiter) evictIdle(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > idle {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup goroutine; calling it twice is safe
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *MemoryLimiter) Limit() int { return l.config.RequestsPerMinute }

func (l *MemoryLimiter) perSecond() float64 {
	return float64(l.config.RequestsPerMinute) / 60.0
}

// Allow takes one token from key's bucket
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	burst := float64(l.config.BurstSize)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: burst, lastUpdate: now}
		l.buckets[key] = b
	} else {
		b.tokens = math.Min(burst, b.tokens+now.Sub(b.lastUpdate).Seconds()*l.perSecond())
		b.lastUpdate = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return Decision{Allowed: true, Remaining: int(b.tokens)}, nil
	}
	wait := time.Minute
	if rate := l.perSecond(); rate > 0 {
		wait = time.Duration((1 - b.tokens) / rate * float64(time.Second))
	}
	return Decision{Allowed: false, Remaining: 0, RetryAfter: wait}, nil
}

// ---------------------------------------------------------------------------
// Redis-backed limiter shared by every replica
// ---------------------------------------------------------------------------

// RedisLimiter enforces the limit with the GCRA implementation of redis_rate
type RedisLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisLimiter builds a limiter over an existing client
func NewRedisLimiter(client *redis.Client, prefix string, cfg RateLimitConfig) *RedisLimiter {
	return &RedisLimiter{
		limiter: redis_rate.NewLimiter(client),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
		prefix: prefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	res, err := l.limiter.Allow(ctx, l.prefix+key, l.limit)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return Decision{Allowed: res.Allowed > 0, Remaining: res.Remaining, RetryAfter: res.RetryAfter}, nil
}

func (l *RedisLimiter) Limit() int { return l.limit.Rate }

// Stop is a no-op; the client is owned by the caller
func (l *RedisLimiter) Stop() {}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// RateLimitMiddleware rejects callers over their limit with 429. When the
// limiter itself fails the request is let through and the failure logged.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rateLimitKey(c)
		d, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			retry := int(math.Ceil(d.RetryAfter.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			apperr.Respond(c, apperr.TooManyRequests("rate_limited"))
			return
		}
		c.Next()
	}
}

// rateLimitKey prefers the authenticated user over the client IP
func rateLimitKey(c *gin.Context) string {
	if id := c.GetString(ContextUserID); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}
