package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/api"
	"github.com/taoyao-code/esctl/internal/app"
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/metrics"
)

// Run 网关启动流程，阻塞直到 ctx 结束
func Run(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) error {
	log = log.With(zap.String("instance", app.GenerateInstanceID()))
	log.Info("starting esctl gateway", zap.String("device", cfg.Device.SessionParams().Addr()),
		zap.String("link", cfg.Device.Link))

	// ========== 阶段1: 基础组件 ==========
	reg, appm := app.NewMetrics()
	metricsHandler := metrics.Handler(reg)

	table, err := app.LoadInputs(cfg.Inputs, log)
	if err != nil {
		log.Error("load input map failed", zap.Error(err))
		return err
	}

	// ========== 阶段2: 通知转发（可选）==========
	pub, err := app.NewPublisher(cfg.Notify, log)
	if err != nil {
		log.Error("notify initialization failed", zap.Error(err))
		return err
	}
	defer func() { _ = pub.Close() }()

	// ========== 阶段3: 设备操作服务与健康检查 ==========
	svc := app.NewControlService(cfg, table, appm, pub, log)
	healthAgg := app.NewHealthAggregator(cfg.Health, svc, pub)
	log.Info("control service initialized",
		zap.Int("rate_per_sec", cfg.Control.RatePerSec),
		zap.Int("breaker_threshold", cfg.Control.BreakerThreshold))

	// ========== 阶段4: HTTP 网关 ==========
	handler := api.NewDeviceHandler(svc, table, cfg.Control, log)
	httpSrv := app.NewHTTPServer(cfg, metricsHandler, healthAgg, log, func(r *gin.Engine) {
		api.RegisterDeviceRoutes(r, handler, cfg.HTTP.Auth, log)
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// ========== 阶段5: 等待关闭 ==========
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, gracefully shutting down...")
	case err := <-errCh:
		log.Error("http server error", zap.Error(err))
		return err
	}

	// 保持监听类请求可能持续较久，这里只等待有限时间
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}
	log.Info("shutdown complete")
	return nil
}
