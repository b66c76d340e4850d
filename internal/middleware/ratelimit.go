package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/fitchat/internal/logging"
)

// Evaler is the slice of *redis.Client the limiter needs.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// incrWindow increments the counter and starts its window on first use.
const incrWindow = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// RateLimiter is a fixed-window counter in Redis. Chat sends fail open so a
// Redis blip never blocks messaging; friend requests fail closed because they
// trigger outbound email.
type RateLimiter struct {
	redis    Evaler
	limit    int64
	window   time.Duration
	prefix   string
	keyFn    func(r *http.Request) string
	failOpen bool
}

func NewRateLimiter(redis Evaler, limit int64, window time.Duration, prefix string, keyFn func(r *http.Request) string, failOpen bool) *RateLimiter {
	return &RateLimiter{
		redis:    redis,
		limit:    limit,
		window:   window,
		prefix:   prefix,
		keyFn:    keyFn,
		failOpen: failOpen,
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		suffix := ""
		if rl.keyFn != nil {
			suffix = rl.keyFn(r)
		}
		if suffix == "" {
			suffix = GetClientIP(r)
		}
		key := rl.prefix + suffix

		windowSeconds := int64(rl.window.Seconds())
		if windowSeconds < 1 {
			windowSeconds = 1
		}
		count, err := rl.redis.Eval(r.Context(), incrWindow, []string{key}, windowSeconds).Int64()
		if err != nil {
			logging.Error("Rate limit Redis error", map[string]interface{}{
				"error":  err.Error(),
				"prefix": rl.prefix,
			})
			if rl.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusServiceUnavailable, "Rate limiting temporarily unavailable")
			return
		}

		if count > rl.limit {
			w.Header().Set("Retry-After", strconv.FormatInt(windowSeconds, 10))
			writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded, try again in %ds", windowSeconds))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetClientIP extracts the client IP, preferring proxy headers.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
