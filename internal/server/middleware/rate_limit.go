package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// RPS is the sustained number of requests per second per client. Zero disables limiting.
	RPS float64
	// Burst is the bucket size. Values below 1 are raised to 1.
	Burst int
	// IdleTTL evicts a client's bucket after this long without requests.
	IdleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP so a single client cannot
// brute-force OTP or authenticator codes.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     RateLimitConfig
	metrics *HTTPMetrics
	log     *zap.Logger
	now     func() time.Time
}

// NewRateLimiter returns a RateLimiter. metrics and log may be nil.
func NewRateLimiter(cfg RateLimitConfig, metrics *HTTPMetrics, log *zap.Logger) *RateLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

func (rl *RateLimiter) reserve(key string) (bool, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RPS), rl.cfg.Burst)}
		rl.clients[key] = cl
	}
	cl.lastSeen = now
	if cl.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := cl.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// Sweep drops buckets idle for longer than IdleTTL.
func (rl *RateLimiter) Sweep() {
	cutoff := rl.now().Add(-rl.cfg.IdleTTL)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for k, cl := range rl.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(rl.clients, k)
		}
	}
}

// Run sweeps idle buckets every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Handler returns a Gin middleware enforcing the per-client limit.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.cfg.RPS <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		allowed, delay := rl.reserve(ip)
		if allowed {
			c.Next()
			return
		}
		route := c.FullPath()
		rl.metrics.rateLimited(route)
		rl.log.Warn("rate limit exceeded",
			zap.String("request_id", GetRequestID(c)),
			zap.String("route", route),
		)
		seconds := int(math.Ceil(delay.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
		AbortWithError(c, http.StatusTooManyRequests, "too many requests")
	}
}
