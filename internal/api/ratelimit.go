package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// rateLimit returns a fixed-window limiter keyed on client IP, backed by
// Redis. With no Redis client configured the middleware passes requests
// through untouched. A Redis outage fails open: public checkout must not
// go down with the cache.
func rateLimit(cache *redis.Client, name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cache == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			bucket := time.Now().Unix() / int64(window.Seconds())
			key := fmt.Sprintf("ratelimit:%s:%s:%d", name, ip, bucket)

			count, err := cache.Incr(r.Context(), key).Result()
			if err != nil {
				logger.Error("rate limit check failed", "error", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				cache.Expire(r.Context(), key, window)
			}
			if count > int64(limit) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
				httputil.Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
