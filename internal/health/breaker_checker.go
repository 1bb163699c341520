package health

import (
	"context"
	"time"

	"github.com/taoyao-code/esctl/internal/control"
)

// BreakerChecker 按熔断器状态报告：打开为不健康，半开为降级
type BreakerChecker struct {
	breaker *control.CircuitBreaker
}

func NewBreakerChecker(cb *control.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{breaker: cb}
}

func (c *BreakerChecker) Name() string { return "circuit_breaker" }

func (c *BreakerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	stats := c.breaker.Stats()

	status := StatusHealthy
	message := "ok"
	switch c.breaker.State() {
	case control.BreakerOpen:
		status = StatusUnhealthy
		message = "device unreachable, circuit open"
	case control.BreakerHalfOpen:
		status = StatusDegraded
		message = "probing device"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"state":      stats.State,
			"failures":   stats.Failures,
			"trip_count": stats.TripCount,
		},
		Latency: time.Since(start),
	}
}
