package auth

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter throttles login requests per client IP with a token bucket
// that refills maxHits tokens per window.
type LoginRateLimiter struct {
	maxHits   int
	window    time.Duration
	buckets   *xsync.MapOf[string, ipBucket]
	maxMemory int
	now       Clock
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		buckets:   xsync.NewMapOf[string, ipBucket](),
		maxMemory: 5000,
		now:       systemClock,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(ClientIP(r), l.now())
		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many login attempts", "kind": "rate_limited"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	bucket, _ := l.buckets.Compute(ip, func(existing ipBucket, loaded bool) (ipBucket, bool) {
		if !loaded {
			existing.limiter = rate.NewLimiter(rate.Every(l.window/time.Duration(l.maxHits)), l.maxHits)
		}
		existing.lastSeen = now
		return existing, false
	})

	reservation := bucket.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, l.window
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}

	if l.buckets.Size() > l.maxMemory {
		l.evictIdle(now)
	}

	return true, 0
}

func (l *LoginRateLimiter) evictIdle(now time.Time) {
	threshold := now.Add(-l.window)
	l.buckets.Range(func(ip string, bucket ipBucket) bool {
		if bucket.lastSeen.Before(threshold) {
			l.buckets.Compute(ip, func(current ipBucket, loaded bool) (ipBucket, bool) {
				if !loaded {
					return current, true
				}
				return current, current.lastSeen.Before(threshold)
			})
		}
		return true
	})
}

// ClientIP prefers the first X-Forwarded-For hop and falls back to the host
// part of RemoteAddr.
func ClientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		first, _, _ := strings.Cut(xForwardedFor, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}
