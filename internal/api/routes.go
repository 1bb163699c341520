package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
)

// RegisterDeviceRoutes 注册接收机控制路由
func RegisterDeviceRoutes(r gin.IRouter, handler *DeviceHandler, authCfg cfgpkg.AuthConfig, logger *zap.Logger) {
	if r == nil || handler == nil {
		return
	}

	api := r.Group("/api/v1")
	if authCfg.Enabled {
		api.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled")
	}

	api.GET("/inputs", handler.ListInputs)
	api.POST("/power", handler.Power)
	api.POST("/volume", handler.Volume)
	api.POST("/input", handler.Input)
	api.POST("/raw", handler.Raw)
	api.POST("/query", handler.Query)
	api.POST("/monitor", handler.Monitor)
	api.GET("/breaker", handler.BreakerStatus)
	api.POST("/breaker/reset", handler.ResetBreaker)

	logger.Info("device routes registered", zap.Int("endpoints", 9))
}
