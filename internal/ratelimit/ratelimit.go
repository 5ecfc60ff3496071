// Package ratelimit throttles mutating console traffic per operator. A
// single instance uses an in-process token bucket; replicas share a Redis
// fixed window. Reads are never limited.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mbd888/riskwatch/internal/logging"
)

// OperatorHeader identifies the console operator; the client IP is used
// when it is absent.
const OperatorHeader = "X-Operator-ID"

// Config configures the buckets.
type Config struct {
	PerMinute int           // sustained rate
	Burst     int           // bucket size
	IdleTTL   time.Duration // buckets unused this long are dropped
}

// DefaultConfig allows one mutation per second with bursts of 20.
func DefaultConfig() Config {
	return Config{PerMinute: 60, Burst: 20, IdleTTL: 10 * time.Minute}
}

var throttled = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "riskwatch",
	Subsystem: "ratelimit",
	Name:      "throttled_total",
	Help:      "Requests refused with 429.",
})

var backendErrors = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "riskwatch",
	Subsystem: "ratelimit",
	Name:      "backend_errors_total",
	Help:      "Limiter backend failures; the request was let through.",
})

func init() {
	prometheus.MustRegister(throttled, backendErrors)
}

// Backend decides whether key may make one more request.
type Backend interface {
	Take(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// Limiter holds one bucket per key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

// New creates a limiter. Zero fields in cfg take their defaults.
func New(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = def.PerMinute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	return &Limiter{cfg: cfg, now: time.Now, buckets: make(map[string]*bucket)}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.cfg.Burst - 1), seen: now}
		return true
	}

	b.tokens += now.Sub(b.seen).Seconds() * float64(l.cfg.PerMinute) / 60
	b.tokens = min(b.tokens, float64(l.cfg.Burst))
	b.seen = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Take implements Backend.
func (l *Limiter) Take(_ context.Context, key string) (bool, error) {
	return l.Allow(key), nil
}

// sweep drops idle buckets at most once per IdleTTL; caller holds l.mu
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.seen) >= l.cfg.IdleTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware limits POST, PUT and DELETE requests.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return Middleware(l)
}

// Middleware limits POST, PUT and DELETE requests against b. Backend
// failures let the request through.
func Middleware(b Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(OperatorHeader)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		ok, err := b.Take(c.Request.Context(), key)
		if err != nil {
			backendErrors.Inc()
			logging.L(c.Request.Context()).Warn("rate limiter unavailable", "error", err)
			ok = true
		}
		if !ok {
			throttled.Inc()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}
