// internal/middleware/ratelimit_middleware.go
package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "ledroitcheck-service/internal/pkg/errors"
	"ledroitcheck-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter allows perSecond requests with the given burst per IP.
// Buckets idle for longer than ttl are dropped.
func NewRateLimiter(perSecond float64, burst int, ttl time.Duration) *RateLimiter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow takes a token for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = time.Now()
	rl.mu.Unlock()
	return b.lim.Allow()
}

// Stop ends the sweeper.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, b := range rl.buckets {
				if now.Sub(b.seen) > rl.ttl {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// JSON rejects over-limit requests with the standard error envelope.
func (rl *RateLimiter) JSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(ClientIP(c.Request)) {
			response.Fail(c, "rate limit exceeded", xerrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// Plain rejects over-limit requests with a text body, for endpoints whose
// callers are browsers posting forms.
func (rl *RateLimiter) Plain() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(ClientIP(c.Request)) {
			c.Header("Retry-After", "1")
			c.Data(http.StatusTooManyRequests, "text/plain; charset=utf-8", []byte("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClientIP returns the first X-Forwarded-For address or the peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
