package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window request counter shared by every API process.
type Limiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// New connects to Redis and returns a limiter admitting limit requests per
// key in each window.
func New(ctx context.Context, addr, password string, db int, limit int, window time.Duration) (*Limiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, fmt.Errorf("redis.New: limit and window must be positive (got %d, %s)", limit, window)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Limiter{client: client, limit: int64(limit), window: window}, nil
}

func (l *Limiter) Close() error {
	if err := l.client.Close(); err != nil {
		return fmt.Errorf("redis.Limiter.Close: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.Limiter.Ping: %w", err)
	}
	return nil
}

// Allow counts one request for userID in the current window and reports
// whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := WindowKey(userID, time.Now(), l.window)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis.Limiter.Allow: %w", err)
	}

	return incr.Val() <= l.limit, nil
}

// WindowKey returns the counter key for userID in the window containing now.
func WindowKey(userID int64, now time.Time, window time.Duration) string {
	slot := now.UnixNano() / int64(window)
	return "ratelimit:user:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(slot, 10)
}
