package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		s.log.Info("http_request",
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", clientIP,
		)
	}
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"code": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}

// ipLimiters keeps one token bucket per client, dropped again after ttl of
// inactivity.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	r        rate.Limit
	burst    int
	ttl      time.Duration
}

type clientLimiter struct {
	lim     *rate.Limiter
	lastHit time.Time
}

func newIPLimiters(perMinute int, ttl time.Duration) *ipLimiters {
	if perMinute < 1 {
		perMinute = 60
	}
	return &ipLimiters{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		ttl:      ttl,
	}
}

func (l *ipLimiters) allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// lazy cleanup
	for k, v := range l.limiters {
		if now.Sub(v.lastHit) > l.ttl {
			delete(l.limiters, k)
		}
	}

	cl, ok := l.limiters[ip]
	if !ok {
		cl = &clientLimiter{
			lim:     rate.NewLimiter(l.r, l.burst),
			lastHit: now,
		}
		l.limiters[ip] = cl
	}

	cl.lastHit = now
	return cl.lim.Allow()
}
