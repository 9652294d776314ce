package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Allower decides whether a user may issue one more request.
// *redis.Limiter and *LocalLimiter satisfy it.
type Allower interface {
	Allow(ctx context.Context, userID int64) (bool, error)
}

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiters holds one token bucket per key. Stale entries are cleaned up
// every 10 minutes until ctx is done.
type keyedLimiters[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*entry
	rps      float64
	burst    int
}

func newKeyedLimiters[K comparable](ctx context.Context, requestsPerSecond float64, burst int) *keyedLimiters[K] {
	k := &keyedLimiters[K]{
		limiters: make(map[K]*entry),
		rps:      requestsPerSecond,
		burst:    burst,
	}

	// Background cleanup of stale limiters.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				k.prune(time.Now().Add(-30 * time.Minute))
			case <-ctx.Done():
				return
			}
		}
	}()

	return k
}

func (k *keyedLimiters[K]) get(key K) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(k.rps), k.burst)}
		k.limiters[key] = e
	}
	e.lastAccess = time.Now()
	return e.limiter
}

func (k *keyedLimiters[K]) prune(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()

	for key, e := range k.limiters {
		if e.lastAccess.Before(cutoff) {
			delete(k.limiters, key)
		}
	}
}

// LocalLimiter is the in-process per-user limiter used when Redis is not
// configured.
type LocalLimiter struct {
	users *keyedLimiters[int64]
}

func NewLocalLimiter(ctx context.Context, requestsPerSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{users: newKeyedLimiters[int64](ctx, requestsPerSecond, burst)}
}

func (l *LocalLimiter) Allow(_ context.Context, userID int64) (bool, error) {
	return l.users.get(userID).Allow(), nil
}

// RateLimitByIP applies per-IP rate limiting for unauthenticated endpoints
// such as the websocket handshake. Uses chi's RealIP middleware value via
// r.RemoteAddr.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	ips := newKeyedLimiters[string](ctx, requestsPerSecond, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ips.get(r.RemoteAddr).Allow() {
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies per-user rate limiting. It must be chained after Auth.
// When the limiter itself fails the request is let through.
func RateLimit(limiter Allower) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				// No user in context; skip rate limiting.
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), userID)
			if err != nil {
				log.Warn().Err(err).Int64("user_id", userID).Msg("ratelimit: limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				http.Error(w, `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
