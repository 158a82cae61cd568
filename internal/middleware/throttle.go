package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPThrottle 按客户端 IP 做令牌桶限流，保护 HTTP 层免受请求洪泛。
// 它与会话核心里按用户的消息准入窗口相互独立。
type IPThrottle struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPThrottle 创建一个 IPThrottle。
func NewIPThrottle(cfg config.ThrottleConfig) *IPThrottle {
	rps, burst := cfg.RequestsPerSecond, cfg.Burst
	if rps <= 0 {
		rps = 20
	}
	if burst <= 0 {
		burst = 50
	}
	return &IPThrottle{
		limiters: make(map[string]*ipLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow 报告来自 ip 的请求是否放行。
func (t *IPThrottle) Allow(ip string) bool {
	t.mu.Lock()
	entry, ok := t.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[ip] = entry
	}
	now := t.now()
	entry.lastSeen = now
	t.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Sweep 删除超过 idle 没有请求的 IP，返回删除的数量。
func (t *IPThrottle) Sweep(idle time.Duration) int {
	cutoff := t.now().Add(-idle)
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for ip, entry := range t.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(t.limiters, ip)
			removed++
		}
	}
	return removed
}

// Run 周期性清理空闲的限流器，直到 ctx 结束。
func (t *IPThrottle) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(idle); n > 0 {
				log.Debugw("清理空闲 IP 限流器", "removed", n)
			}
		}
	}
}

// Middleware 返回对应的 Gin 中间件，超限时返回 429。
func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Allow(c.ClientIP()) {
			log.Warnw("请求过于频繁", "clientIP", c.ClientIP(), "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "Too many requests",
				"data":    nil,
			})
			return
		}
		c.Next()
	}
}
