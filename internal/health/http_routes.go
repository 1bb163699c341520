package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册健康检查路由
func RegisterHTTPRoutes(r gin.IRoutes, aggregator *Aggregator) {
	// 存活探针
	r.GET("/healthz", func(c *gin.Context) {
		if !aggregator.Alive() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"alive": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"alive": true})
	})

	// 就绪探针：设备不可达或熔断打开时返回 503
	r.GET("/readyz", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())
		if report.Status == StatusUnhealthy {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": report.Status,
				"ready":  false,
				"checks": report.Checks,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": report.Status,
			"ready":  true,
		})
	})

	// 详细报告；Degraded 仍返回 200
	r.GET("/health", func(c *gin.Context) {
		report := aggregator.Report(c.Request.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	})
}
