package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"mailsight/backend/internal/monitoring"
)

// ipLimiter 单个 IP 的限流器及最近活跃时间
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 基于令牌桶的按 IP 限流中间件
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	metrics  *monitoring.Metrics
}

// NewRateLimiter 创建按 IP 限流中间件
func NewRateLimiter(rps float64, burst int, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		metrics:  metrics,
	}

	// 定期清理长时间不活跃的 IP，防止 map 无限增长
	go rl.cleanupLoop(5*time.Minute, 10*time.Minute)

	return rl
}

// ContextKeyRateLimited 标记当前请求已超限但未被拒绝
const ContextKeyRateLimited = "rate_limited"

// Limit 返回 gin 中间件，超限的请求以 429 拒绝
func (rl *RateLimiter) Limit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock(route)
			}
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SoftLimit 返回只打降级标记、从不拒绝请求的 gin 中间件。
// 像素端点必须无条件返回图片，超限时由处理器自行降级。
func (rl *RateLimiter) SoftLimit(route string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitBlock(route)
			}
			c.Set(ContextKeyRateLimited, true)
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop(interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-maxIdle)
		rl.mu.Lock()
		for ip, entry := range rl.limiters {
			if entry.lastSeen.Before(cutoff) {
				delete(rl.limiters, ip)
			}
		}
		rl.mu.Unlock()
	}
}
