package control

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer 基于 Token Bucket 的发送节流
// 接收机在短时间内连续收到多条命令时会丢弃后续命令，网关按固定速率放行
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer ratePerSec: 稳定速率；burst: 突发容量
func NewPacer(ratePerSec, burst int) *Pacer {
	if ratePerSec <= 0 {
		ratePerSec = 4
	}
	if burst <= 0 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait 阻塞直至放行或 ctx 结束
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
