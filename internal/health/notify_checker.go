package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger 可探活的下游（如 Redis 转发器）
type Pinger interface {
	Ping(ctx context.Context) error
}

// NotifyChecker 通知转发下游检查；转发是旁路，失败只算降级
type NotifyChecker struct {
	pinger Pinger
}

func NewNotifyChecker(p Pinger) *NotifyChecker {
	return &NotifyChecker{pinger: p}
}

func (c *NotifyChecker) Name() string { return "notify" }

func (c *NotifyChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "ok",
		Latency: time.Since(start),
	}
}
