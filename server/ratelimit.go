package main

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimiter counts hits per key in fixed windows.
type rateLimiter interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
}

type rateBucket struct {
	count   int
	resetAt time.Time
}

const limiterSweepEvery = time.Minute

// memoryLimiter keeps buckets in process. Used when no Redis is configured.
// Expired buckets are dropped on access and by a sweep at most once per
// limiterSweepEvery.
type memoryLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*rateBucket
	nextSweep time.Time
	now       func() time.Time
}

func newMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{buckets: map[string]*rateBucket{}, now: time.Now}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, max int, window time.Duration) (bool, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.After(m.nextSweep) {
		m.sweep(now)
		m.nextSweep = now.Add(limiterSweepEvery)
	}
	b, ok := m.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &rateBucket{resetAt: now.Add(window)}
		m.buckets[key] = b
	}
	if b.count >= max {
		return false, nil
	}
	b.count++
	return true, nil
}

func (m *memoryLimiter) sweep(now time.Time) {
	for k, b := range m.buckets {
		if now.After(b.resetAt) {
			delete(m.buckets, k)
		}
	}
}

// redisLimiter shares the window across instances. SET NX with the window
// TTL and INCR run in one MULTI so a counter never outlives its window.
type redisLimiter struct {
	rdb    *redis.Client
	prefix string
}

func newRedisLimiter(rdb *redis.Client) *redisLimiter {
	return &redisLimiter{rdb: rdb, prefix: "journeyboard:rl:"}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	k := l.prefix + key
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, 0, window)
		incr = p.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(max), nil
}
