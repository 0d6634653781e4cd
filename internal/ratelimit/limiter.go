// Package ratelimit caps how many requests one connection may make per window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned by Rule.Check when the caller is over its limit.
var ErrLimited = errors.New("too many requests")

// Result describes one limiter decision.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

// Limiter counts hits for key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter is a fixed-window limiter shared through Redis (INCR + EXPIRE).
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	Max    int64
	Window time.Duration
}

// NewRedisLimiter allows max hits per window for each key.
func NewRedisLimiter(client *redis.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		Client: client,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.Window)
	redisKey := fmt.Sprintf("%s%s:%d", l.Prefix, strings.ReplaceAll(key, " ", "_"), winStart.UnixMilli())

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.PExpire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	return decide(incr.Val(), l.Max, winStart.Add(l.Window).Sub(now), l.Window), nil
}

// MemoryLimiter is a fixed-window limiter local to this process.
type MemoryLimiter struct {
	c      *gocache.Cache
	Max    int64
	Window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter allows max hits per window for each key.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, time.Minute),
		Max:    int64(max),
		Window: window,
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()
	winStart := now.Truncate(l.Window)
	k := fmt.Sprintf("%s:%d", key, winStart.UnixMilli())

	hits := int64(1)
	if err := l.c.Add(k, hits, l.Window); err != nil {
		n, err := l.c.IncrementInt64(k, 1)
		if err != nil {
			return Result{}, err
		}
		hits = n
	}
	return decide(hits, l.Max, winStart.Add(l.Window).Sub(now), l.Window), nil
}

func decide(hits, max int64, untilReset, window time.Duration) Result {
	res := Result{
		Allowed:     hits <= max,
		Remaining:   max - hits,
		CurrentHits: hits,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = untilReset
		if res.RetryAfter <= 0 {
			res.RetryAfter = time.Duration(math.Ceil(window.Seconds())) * time.Second
		}
	}
	return res
}

// Rule applies a limiter to a fixed set of method and publication names,
// counted separately per connection.
type Rule struct {
	Names   []string
	Limiter Limiter
}

// Applies reports whether name is covered by the rule.
func (r *Rule) Applies(name string) bool {
	return r != nil && r.Limiter != nil && slices.Contains(r.Names, name)
}

// Check counts one request by connID for name. It returns an error wrapping
// ErrLimited when the connection is over its limit. Names outside the rule are
// always allowed.
func (r *Rule) Check(ctx context.Context, connID, name string) error {
	if !r.Applies(name) {
		return nil
	}
	res, err := r.Limiter.Allow(ctx, connID)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if !res.Allowed {
		return fmt.Errorf("%w: retry in %s", ErrLimited, res.RetryAfter.Round(time.Millisecond))
	}
	return nil
}
