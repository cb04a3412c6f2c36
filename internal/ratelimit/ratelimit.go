// Package ratelimit throttles public endpoints with fixed one-minute windows kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-storefront/internal/logger"
	"ms-storefront/internal/utils"
)

const window = time.Minute

// Limiter counts hits per key and window. A nil client or a zero limit disables it.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Limit  int
	Logger *logger.Logger
	now    func() time.Time
}

func NewLimiter(client *redis.Client, prefix string, limit int, log *logger.Logger) *Limiter {
	return &Limiter{Client: client, Prefix: prefix, Limit: limit, Logger: log, now: time.Now}
}

// Allow records a hit for key and reports whether it is within the limit, plus the seconds
// left in the current window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if l.Client == nil || l.Limit <= 0 {
		return true, 0, nil
	}
	now := l.now()
	bucket := now.Unix() / int64(window/time.Second)
	redisKey := fmt.Sprintf("ratelimit:%s:%s:%d", l.Prefix, key, bucket)

	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, 0, err
	}

	retry := int(window/time.Second) - int(now.Unix()%int64(window/time.Second))
	return incr.Val() <= int64(l.Limit), retry, nil
}

// Middleware answers 429 once a client exceeds the limit. Redis failures let the request
// through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		ok, retry, err := l.Allow(r.Context(), ip)
		if err != nil {
			l.Logger.Warn("RATELIMIT", fmt.Sprintf("Limiter unavailable, allowing %s: %v", ip, err))
		}
		if !ok {
			l.Logger.LogSecurity("RATE_LIMITED", fmt.Sprintf("%s exceeded %d requests/min on %s", ip, l.Limit, r.URL.Path))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			utils.WriteJSON(w, http.StatusTooManyRequests, utils.ErrorResponse("Too many requests. Please wait a moment and try again", http.StatusText(http.StatusTooManyRequests)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
