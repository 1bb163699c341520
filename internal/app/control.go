package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/control"
	"github.com/taoyao-code/esctl/internal/inputs"
	"github.com/taoyao-code/esctl/internal/metrics"
	"github.com/taoyao-code/esctl/internal/notify"
	"github.com/taoyao-code/esctl/internal/protocol/escmd"
)

// NewControlService 按配置组装设备操作服务；appm、pub 可为空
// 注解依次尝试 A8 82 状态通知与输入源回显
func NewControlService(cfg *cfgpkg.Config, table *inputs.Table, appm *metrics.AppMetrics, pub notify.Publisher, logger *zap.Logger) *control.Service {
	return control.NewService(control.Options{
		Params:         cfg.Device.SessionParams(),
		SessionOptions: cfg.Device.SessionOptions(),
		Pacer:          control.NewPacer(cfg.Control.RatePerSec, cfg.Control.Burst),
		Breaker:        control.NewCircuitBreaker(cfg.Control.BreakerThreshold, cfg.Control.BreakerTimeout),
		Metrics:        appm,
		Publisher:      pub,
		Annotator:      escmd.Chain(escmd.StatusAnnotator{}, table.Annotator()),
		Logger:         logger,
	})
}

// LoadInputs 内置输入源表，配置了覆盖文件时合并
func LoadInputs(cfg cfgpkg.InputsConfig, logger *zap.Logger) (*inputs.Table, error) {
	table := inputs.Default()
	if cfg.File == "" {
		return table, nil
	}
	merged, err := inputs.LoadFile(table, cfg.File)
	if err != nil {
		return nil, err
	}
	logger.Info("input map loaded", zap.String("path", cfg.File), zap.Int("entries", merged.Len()))
	return merged, nil
}
