package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// GinHTTPMiddleware 记录请求数、耗时与在途请求数，路由标签使用 gin 的路由模板
func GinHTTPMiddleware(httpMetrics *HTTPServerMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if httpMetrics == nil || httpMetrics.Skip(route) {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		done := httpMetrics.Begin(ctx, c.Request.Method)
		start := time.Now()
		c.Next()
		done()

		if route == "" {
			// 未命中路由时统一收敛，避免将原始 URL Path 作为标签导致高基数
			route = UnknownRoute
		}
		httpMetrics.Observe(ctx, c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
