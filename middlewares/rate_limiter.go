package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type LimiterConfig struct {
	RPS     float64       // steady refill rate
	Burst   int           // bucket size
	IdleTTL time.Duration // buckets unused this long are dropped
}

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one in-memory token bucket per key.
type RateLimiter struct {
	conf    LimiterConfig
	mu      sync.Mutex
	buckets map[string]*keyLimiter
	stop    chan struct{}
	once    sync.Once
}

// NewRateLimiter starts a sweeper that drops idle buckets until Stop is called.
func NewRateLimiter(conf LimiterConfig) *RateLimiter {
	if conf.IdleTTL <= 0 {
		conf.IdleTTL = 10 * time.Minute
	}
	rl := &RateLimiter{
		conf:    conf,
		buckets: make(map[string]*keyLimiter),
		stop:    make(chan struct{}),
	}
	go rl.sweep(conf.IdleTTL / 2)
	return rl
}

func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for k, v := range rl.buckets {
				if now.Sub(v.lastSeen) > rl.conf.IdleTTL {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *RateLimiter) Stop() { rl.once.Do(func() { close(rl.stop) }) }

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	lim := rate.NewLimiter(rate.Limit(rl.conf.RPS), rl.conf.Burst)
	rl.buckets[key] = &keyLimiter{limiter: lim, lastSeen: now}
	return lim
}

// KeySelector picks the bucket for a request.
type KeySelector func(c *gin.Context) string

// ByIP buckets requests by client IP under prefix.
func ByIP(prefix string) KeySelector {
	return func(c *gin.Context) string { return prefix + ":" + c.ClientIP() }
}

func (rl *RateLimiter) Middleware(selectKey KeySelector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(selectKey(c)).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Too many requests. Please try again later.",
			})
			return
		}
		c.Next()
	}
}
