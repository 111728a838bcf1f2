package middleware

import (
	"time"

	"meal-guardrails/internal/infrastructure/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics 記錄每個路由的請求數與耗時
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 使用路由樣板避免標籤數量爆增
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
