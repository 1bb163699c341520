package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/health"
	"github.com/taoyao-code/esctl/internal/httpserver"
)

// NewHTTPServer 根据配置创建 HTTP 服务器
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, agg *health.Aggregator,
	log *zap.Logger, register ...func(r *gin.Engine)) *httpserver.Server {
	return httpserver.New(cfg.HTTP, cfg.Metrics, metricsHandler, agg, log, register...)
}
