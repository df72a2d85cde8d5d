package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"

	"github.com/ceyewan/idforge/clog"
)

// LimitConfig 按客户端 IP 的令牌桶限流配置，Rate <= 0 时关闭限流
type LimitConfig struct {
	Rate        float64       `mapstructure:"rate" yaml:"rate"`
	Burst       int           `mapstructure:"burst" yaml:"burst"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

func (c *LimitConfig) setDefaults() {
	if c.Rate > 0 && c.Burst <= 0 {
		c.Burst = int(c.Rate)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter 每个 key 一个 rate.Limiter，空闲超时的桶在后台被清理
type ipLimiter struct {
	cfg    LimitConfig
	logger clog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newIPLimiter(cfg LimitConfig, logger clog.Logger) *ipLimiter {
	l := &ipLimiter{
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup(cfg.IdleTimeout)
	return l
}

// allowN 尝试从 key 对应的桶中取 n 个令牌，n 超过 Burst 时按 Burst 计
func (l *ipLimiter) allowN(key string, n int) bool {
	if n > l.cfg.Burst {
		n = l.cfg.Burst
	}
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	return b.limiter.AllowN(now, n)
}

func (l *ipLimiter) cleanup(idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			removed := 0
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastSeen) > idle {
					delete(l.buckets, key)
					removed++
				}
			}
			l.mu.Unlock()
			if removed > 0 {
				l.logger.Debug("cleaned up idle limiters", clog.Int("count", removed))
			}
		case <-l.stopCh:
			return
		}
	}
}

func (l *ipLimiter) stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// middleware 以客户端 IP 为 key 限流，批量请求按 count 扣减令牌
func (l *ipLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			c.Next()
			return
		}

		if !l.allowN(key, requestCost(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				Error: "rate limit exceeded",
				Code:  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// requestCost 读取本次请求的 count：优先 query，其次 JSON body
//
// body 通过 ShouldBindBodyWith 缓存在 gin.Context 中，handler 可以再次绑定。
func requestCost(c *gin.Context) int {
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 1
		}
		return n
	}
	if c.Request.Method != http.MethodPost || c.Request.Body == nil || c.ContentType() != binding.MIMEJSON {
		return 1
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil || body.Count < 1 {
		return 1
	}
	return body.Count
}
