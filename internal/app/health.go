package app

import (
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/control"
	"github.com/taoyao-code/esctl/internal/health"
	"github.com/taoyao-code/esctl/internal/notify"
)

// NewHealthAggregator 设备可达性 + 熔断状态 + 通知下游（若可探活）
// 设备探活经由 svc 的链路锁，不与正在进行的操作并发建链
func NewHealthAggregator(cfg cfgpkg.HealthConfig, svc *control.Service, pub notify.Publisher) *health.Aggregator {
	agg := health.NewAggregator(
		health.NewDeviceChecker(svc, cfg.DeviceTimeout),
		health.NewBreakerChecker(svc.Breaker()),
	)
	agg.SetTimeout(cfg.Timeout)
	if p, ok := pub.(health.Pinger); ok {
		agg.AddChecker(health.NewNotifyChecker(p))
	}
	return agg
}
