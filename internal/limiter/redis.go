package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keeps counters in Redis with TTL-bounded keys.
type Redis struct {
	rdb    redis.Cmdable
	s      Settings
	prefix string
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb redis.Cmdable, s Settings) *Redis {
	return &Redis{rdb: rdb, s: s, prefix: "hogar:login:"}
}

func (l *Redis) keys(key string, ipHash []byte) (fails, block string) {
	id := key + ":" + hex.EncodeToString(ipHash)
	return l.prefix + "fails:" + id, l.prefix + "block:" + id
}

// Allow reports whether (key, ip) is outside a block.
func (l *Redis) Allow(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(key, ipHash)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	// -2: no key, -1: no expiry
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success clears the counter and any block.
func (l *Redis) Success(ctx context.Context, key string, ipHash []byte) error {
	fails, block := l.keys(key, ipHash)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure increments the windowed counter and blocks at the threshold.
func (l *Redis) Failure(ctx context.Context, key string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(key, ipHash)

	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, fails, l.s.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n < int64(l.s.MaxFails) {
		return false, 0, nil
	}
	_, err = l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, block, 1, l.s.BlockFor)
		p.Del(ctx, fails)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	return true, l.s.BlockFor, nil
}
