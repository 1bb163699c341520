package health

import (
	"context"
	"fmt"
	"time"
)

// LinkChecker 设备探活：与设备操作共用同一把链路锁
type LinkChecker interface {
	Addr() string
	CheckLink(timeout time.Duration) (inUse bool, err error)
}

// DeviceChecker 设备可达性检查
// 设备正被占用视为健康，不另开第二条链路
type DeviceChecker struct {
	link    LinkChecker
	timeout time.Duration
}

// NewDeviceChecker 创建设备检查器；timeout<=0 时为 1s
func NewDeviceChecker(p LinkChecker, timeout time.Duration) *DeviceChecker {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &DeviceChecker{link: p, timeout: timeout}
}

func (c *DeviceChecker) Name() string { return "device" }

// Check 执行健康检查
func (c *DeviceChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}

	inUse, err := c.link.CheckLink(timeout)
	details := map[string]interface{}{
		"addr":   c.link.Addr(),
		"in_use": inUse,
	}
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("open link failed: %v", err),
			Details: details,
			Latency: time.Since(start),
		}
	}

	message := "ok"
	if inUse {
		message = "device in use"
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: message,
		Details: details,
		Latency: time.Since(start),
	}
}
