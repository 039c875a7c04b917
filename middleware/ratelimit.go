package middleware

import (
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"papanskor/pkg/metrics"
)

// RateLimiter is a token bucket per caller: the user id when signed in, otherwise the client IP.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	buckets sync.Map // key -> *rate.Limiter
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{rps: rate.Limit(rps), burst: burst}
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.buckets.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.rps, l.burst))
	return v.(*rate.Limiter)
}

// Limit must run after Required or Optional so the caller is known.
func (l *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if c := CallerFrom(r.Context()); c.UserID != "" {
			key = "sub:" + c.UserID
		}
		if !l.limiter(key).Allow() {
			metrics.RateLimitRejected.Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}
