package httpx

import (
	"context"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// windowCounter is the subset of Redis commands a fixed window needs.
type windowCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Close() error
}

type redisRateLimiter struct {
	store   windowCounter
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// NewRedisRateLimiter constructs a Redis backed rate limiter shared by every
// API replica.
func NewRedisRateLimiter(addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return newRedisRateLimiter(client, logger), nil
}

func newRedisRateLimiter(store windowCounter, logger *slog.Logger) *redisRateLimiter {
	return &redisRateLimiter{
		store:   store,
		logger:  logger,
		prefix:  "starter:ratelimit:",
		timeout: 250 * time.Millisecond,
		now:     time.Now,
	}
}

// Allow counts a hit against key's current window. The window is armed
// whenever the key carries no expiry. Redis errors fail open.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	hits, err := rl.store.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError("incr", err)
		return rateDecision{allowed: true}
	}
	ttl, err := rl.store.PTTL(ctx, redisKey).Result()
	if err != nil {
		rl.logRedisError("pttl", err)
		ttl = window
	} else if ttl < 0 {
		// -1: no expiry set, -2: key vanished between INCR and PTTL.
		if err := rl.store.PExpire(ctx, redisKey, window).Err(); err != nil {
			rl.logRedisError("pexpire", err)
		}
		ttl = window
	}
	return rateDecision{
		allowed:   int(hits) <= limit,
		count:     int(hits),
		windowEnd: rl.now().Add(ttl),
	}
}

func (rl *redisRateLimiter) Close() {
	if rl.store != nil {
		_ = rl.store.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
