package transport

import (
	"net"
	"strconv"
	"time"
)

// Dialer 打开一条设备链路；每次操作调用一次，单次尝试
type Dialer interface {
	Dial(timeout time.Duration) (Conn, error)
	Addr() string
}

// TCPDialer 网口控制（默认端口 6001）
type TCPDialer struct {
	Host string
	Port int
}

func (d TCPDialer) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Dial 建立 TCP 连接，timeout 覆盖 DNS 与握手
func (d TCPDialer) Dial(timeout time.Duration) (Conn, error) {
	c, err := net.DialTimeout("tcp", d.Addr(), timeout)
	if err != nil {
		return nil, err
	}
	if tc, ok := c.(*net.TCPConn); ok {
		// 命令帧很短，关闭 Nagle 让帧尽快发出
		_ = tc.SetNoDelay(true)
	}
	return c, nil
}
