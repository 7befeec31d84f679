package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/http/respond"
)

// RateLimit allows limit requests per window and client IP, then blocks the
// client for blockFor. It fails open when redis is unreachable.
func RateLimit(rdb *redis.Client, limit int, window, blockFor time.Duration, keyPrefix string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := keyPrefix + ":ip:" + clientIP(r)
			blockKey := key + ":blocked"

			if ttl, err := rdb.TTL(ctx, blockKey).Result(); err == nil && ttl > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))
				respond.Error(w, http.StatusTooManyRequests, "too many requests, try again in "+ttl.Round(time.Second).String())
				return
			}

			count, err := hit(ctx, rdb, key, window)
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count > int64(limit) {
				if err := rdb.Set(ctx, blockKey, "1", blockFor).Err(); err != nil {
					logger.Warn("rate limiter block not stored", zap.Error(err))
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(blockFor.Seconds())))
				respond.Error(w, http.StatusTooManyRequests, "too many requests, blocked for "+blockFor.String())
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-int(count)))
			next.ServeHTTP(w, r)
		})
	}
}

// hit counts one request in the current window. The counter and its expiry are
// written in one MULTI so a counter can never be left without a TTL.
func hit(ctx context.Context, rdb *redis.Client, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// clientIP is the connection's peer address. Forwarding headers only count
// when a trusted proxy middleware has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
