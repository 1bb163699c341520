package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

var (
	ErrConnect = errors.New("connect failed")
	ErrWrite   = errors.New("write failed")
)

// Conn 一次操作独占的设备链路（TCP 或串口）
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// DeadlineReader 自适应接收只依赖读与读超时
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// ConnectError 建链失败（拒绝、超时、DNS），不重试
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() []error { return []error{ErrConnect, e.Err} }

// WriteError 命令帧写入失败
type WriteError struct {
	N   int // 已写出的字节数
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write frame (%d bytes sent): %v", e.N, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }

// SideWrite 唤醒/保活字节的写入结果，失败只记录，不向上传播
type SideWrite struct {
	At  time.Time
	Err error
}

// OK 是否写出成功
func (w SideWrite) OK() bool { return w.Err == nil }

// timeoutError 串口适配器在读超时时返回，与 net 包的超时语义一致
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

// isTimeout 读超时是正常的结束信号
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
