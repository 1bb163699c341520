package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/notify"
)

// NewPublisher 创建通知转发器；未启用时返回 NopPublisher
func NewPublisher(cfg cfgpkg.NotifyConfig, logger *zap.Logger) (notify.Publisher, error) {
	if !cfg.Enabled {
		logger.Info("notify is disabled, skipping redis initialization")
		return notify.NopPublisher{}, nil
	}
	pub, err := notify.New(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("notify publisher initialized",
		zap.String("addr", cfg.Redis.Addr),
		zap.String("channel", cfg.Channel))
	return pub, nil
}
