package control

import (
	"errors"
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // 正常放行
	BreakerOpen                         // 设备不可达，直接拒绝，不再拨号
	BreakerHalfOpen                     // 冷却结束，放行一次试探
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("device circuit breaker is open")

// CircuitBreaker 设备链路熔断器
//
// 只统计建链失败：设备不回复在协议上是正常结果，不算失败。
// 打开期间直接拒绝，不会替调用方重试；冷却后放行一次试探，成功即关闭。
type CircuitBreaker struct {
	mu           sync.Mutex
	state        BreakerState
	failures     int
	lastFailTime time.Time
	tripCount    int64
	probing      bool

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	onStateChange func(from, to BreakerState)
}

// NewCircuitBreaker 创建熔断器；threshold<=0 时为 3，cooldown<=0 时为 15s
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 15 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// SetStateChangeCallback 设置状态变化回调（在锁内同步调用，回调不得回调熔断器）
func (cb *CircuitBreaker) SetStateChangeCallback(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow 调用前检查；返回 nil 表示可以拨号
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.transitionTo(BreakerHalfOpen)
		cb.probing = true
		return nil
	default:
		// 半开时只允许一个试探在途
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	}
}

// Record 记录一次建链结果
func (cb *CircuitBreaker) Record(connectFailed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if !connectFailed {
		cb.failures = 0
		cb.transitionTo(BreakerClosed)
		return
	}
	cb.failures++
	cb.lastFailTime = cb.now()
	if cb.state == BreakerHalfOpen || cb.failures >= cb.threshold {
		if cb.state != BreakerOpen {
			cb.tripCount++
		}
		cb.transitionTo(BreakerOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// State 当前状态
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BreakerStats 熔断器统计
type BreakerStats struct {
	State     string    `json:"state"`
	Failures  int       `json:"failures"`
	TripCount int64     `json:"trip_count"`
	LastFail  time.Time `json:"last_fail,omitempty"`
}

// Stats 获取统计信息
func (cb *CircuitBreaker) Stats() BreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStats{
		State:     cb.state.String(),
		Failures:  cb.failures,
		TripCount: cb.tripCount,
		LastFail:  cb.lastFailTime,
	}
}

// Reset 手动恢复
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.transitionTo(BreakerClosed)
}
