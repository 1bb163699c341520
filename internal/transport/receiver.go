package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// DefaultIdleWindow 静默超过该时长即认为一段突发回复已结束
const DefaultIdleWindow = 200 * time.Millisecond

// ReceiverState 自适应接收状态
type ReceiverState int

const (
	StateWaiting  ReceiverState = iota // 尚未收到任何字节
	StateDraining                      // 已收到字节，按空闲窗口继续收
	StateDone                          // 终态
)

func (s ReceiverState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Receiver 自适应突发读取
//
// 协议没有结束符，也没有"本次传输长度"字段，只能靠时间判断回复是否结束：
// 设备静默满 IdleWindow，或总时长到达 TotalTimeout，先到者为准。
// 帧边界在这一层未知，交给 esframe.Scan 处理。
type Receiver struct {
	TotalTimeout time.Duration
	IdleWindow   time.Duration
	BufSize      int

	// 可选回调
	OnRecvBytes   func(n int)
	OnStateChange func(from, to ReceiverState)
}

func (r *Receiver) transition(cur *ReceiverState, to ReceiverState) {
	if *cur == to {
		return
	}
	from := *cur
	*cur = to
	if r.OnStateChange != nil {
		r.OnStateChange(from, to)
	}
}

// Read 阻塞读取直至 Done，按到达顺序返回全部字节
// 读超时与对端关闭都是正常结束；其他读错误结束循环并连同已收字节一起返回
func (r *Receiver) Read(src DeadlineReader) ([]byte, error) {
	idle := r.IdleWindow
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	size := r.BufSize
	if size <= 0 {
		size = 4096
	}

	hard := time.Now().Add(r.TotalTimeout)
	state := StateWaiting
	// Waiting 阶段只读一次，上限为总超时；超时无数据直接结束，不重试
	deadline := hard

	buf := make([]byte, size)
	var data []byte
	for {
		if err := src.SetReadDeadline(deadline); err != nil {
			r.transition(&state, StateDone)
			return data, fmt.Errorf("set read deadline: %w", err)
		}
		n, err := src.Read(buf)
		if n > 0 {
			data = append(data, buf[:n]...)
			if r.OnRecvBytes != nil {
				r.OnRecvBytes(n)
			}
			r.transition(&state, StateDraining)
			deadline = earliest(time.Now().Add(idle), hard)
		}
		if err != nil {
			r.transition(&state, StateDone)
			if isTimeout(err) || errors.Is(err, io.EOF) {
				return data, nil
			}
			return data, err
		}
		if state == StateWaiting && !time.Now().Before(hard) {
			r.transition(&state, StateDone)
			return data, nil
		}
	}
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
