package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/health"

	_ "github.com/taoyao-code/esctl/docs"
)

// Server HTTP 服务封装
type Server struct {
	srv    *http.Server
	engine *gin.Engine
}

// New 创建并配置 Gin + HTTP Server，注册健康检查、指标与文档路由；
// 业务路由由 register 追加
func New(cfg cfgpkg.HTTPConfig, metrics cfgpkg.MetricsConfig, metricsHandler http.Handler,
	agg *health.Aggregator, logger *zap.Logger, register ...func(r *gin.Engine)) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(logger))

	if agg == nil {
		agg = health.NewAggregator()
	}
	health.RegisterHTTPRoutes(r, agg)

	metricsPath := metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	if metrics.Enable && metricsHandler != nil {
		r.GET(metricsPath, gin.WrapH(metricsHandler))
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	for _, fn := range register {
		fn(r)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return &Server{srv: srv, engine: r}
}

// Handler 根处理器（测试与嵌入使用）
func (s *Server) Handler() http.Handler { return s.engine }

// Addr 监听地址
func (s *Server) Addr() string { return s.srv.Addr }

// Start 启动 HTTP 服务（阻塞）
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
