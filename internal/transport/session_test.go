package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/protocol/esframe"
)

// startDevice 在回环地址上启动一个模拟接收机，每个连接交给 handler
func startDevice(t *testing.T, handler func(c net.Conn)) (host string, port int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer c.Close()
				handler(c)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// drain 读到对端关闭为止
func drain(c net.Conn) []byte {
	b, _ := io.ReadAll(c)
	return b
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestSendCommand_PreambleAndLinger(t *testing.T) {
	payload := []byte{0xA0, 0x60, 0x00, 0x01}
	frame := esframe.MustEncode(payload)
	echo := esframe.MustEncode([]byte{0xA8, 0x82, 0x00, 0x01})
	status := esframe.MustEncode([]byte{0xA8, 0x82, 0x01, 0x21, 0x00})

	received := make(chan []byte, 1)
	host, port := startDevice(t, func(c net.Conn) {
		got := make([]byte, 1+len(frame))
		if _, err := io.ReadFull(c, got); err != nil {
			return
		}
		received <- got
		_, _ = c.Write(echo)
		time.Sleep(80 * time.Millisecond)
		_, _ = c.Write(status)
		drain(c)
	})

	s := NewSession(Params{
		Host:             host,
		Port:             port,
		ConnectTimeout:   2 * time.Second,
		SendWakePreamble: true,
		LingerAfterSend:  true,
	}, WithLogger(zap.NewNop()))

	rep, err := s.SendCommand(payload)
	require.NoError(t, err)

	assert.Equal(t, append([]byte{0xFE}, frame...), <-received)
	assert.Equal(t, frame, rep.Frame)
	require.NotNil(t, rep.Preamble)
	assert.True(t, rep.Preamble.OK())
	assert.True(t, rep.Lingered)
	assert.NoError(t, rep.ReadErr)
	assert.Equal(t, append(append([]byte{}, echo...), status...), rep.Raw)

	res := esframe.Scan(rep.Raw)
	ok, bad, raw := res.Counts()
	assert.Equal(t, 2, ok)
	assert.Zero(t, bad)
	assert.Zero(t, raw)
	assert.Less(t, rep.Elapsed, 2*time.Second, "空闲窗口应先于总超时结束")
}

func TestSendCommand_ShortRead(t *testing.T) {
	frame := esframe.MustEncode([]byte{0xA0, 0x55, 0x00})
	reply := []byte{0xFE, 0xFE}
	host, port := startDevice(t, func(c net.Conn) {
		got := make([]byte, len(frame))
		if _, err := io.ReadFull(c, got); err != nil {
			return
		}
		_, _ = c.Write(reply)
		drain(c)
	})

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: time.Second})
	rep, err := s.SendCommand([]byte{0xA0, 0x55, 0x00})
	require.NoError(t, err)
	assert.Nil(t, rep.Preamble)
	assert.False(t, rep.Lingered)
	assert.Equal(t, reply, rep.Raw)
}

func TestSendCommand_SilentDeviceIsNotAnError(t *testing.T) {
	host, port := startDevice(t, func(c net.Conn) { drain(c) })

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: time.Second})
	start := time.Now()
	rep, err := s.SendCommand([]byte{0xA1, 0x00})
	require.NoError(t, err)
	assert.Empty(t, rep.Raw)
	assert.Less(t, time.Since(start), 800*time.Millisecond)
}

func TestSendCommand_LingerSilentDevice(t *testing.T) {
	host, port := startDevice(t, func(c net.Conn) { drain(c) })

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: 400 * time.Millisecond, LingerAfterSend: true})
	start := time.Now()
	rep, err := s.SendCommand([]byte{0xA1, 0x00})
	require.NoError(t, err)
	assert.Empty(t, rep.Raw)
	assert.GreaterOrEqual(t, time.Since(start), 350*time.Millisecond)
}

func TestSendCommand_ConnectError(t *testing.T) {
	var connectErr error
	var calls int
	s := NewSession(Params{Host: "127.0.0.1", Port: closedPort(t), ConnectTimeout: time.Second})
	s.SetMetricsCallbacks(func(err error) { calls++; connectErr = err }, nil, nil)

	_, err := s.SendCommand([]byte{0xA1, 0x00})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnect)

	var ce *ConnectError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Addr, "127.0.0.1:")
	assert.Equal(t, 1, calls, "单次尝试，不重试")
	assert.Error(t, connectErr)
}

func TestSendCommand_InvalidPayloadDoesNotDial(t *testing.T) {
	d := &fakeDialer{t: t, failOnDial: true}
	s := NewSession(Params{Host: "x"}, WithDialer(d))
	_, err := s.SendCommand(make([]byte, 256))
	assert.ErrorIs(t, err, esframe.ErrInvalidPayloadSize)
}

// fakeConn 可注入写错误的链路
type fakeConn struct {
	mu        sync.Mutex
	written   bytes.Buffer
	writeErrs []error // 依次作用于每次 Write，nil 表示成功
	reads     [][]byte
	closed    atomic.Bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.writeErrs) > 0 {
		err := c.writeErrs[0]
		c.writeErrs = c.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	return c.written.Write(p)
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.reads) == 0 {
		return 0, timeoutError{}
	}
	n := copy(p, c.reads[0])
	c.reads = c.reads[1:]
	return n, nil
}

func (c *fakeConn) Close() error                     { c.closed.Store(true); return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

type fakeDialer struct {
	t          *testing.T
	conn       *fakeConn
	failOnDial bool
}

func (d *fakeDialer) Addr() string { return "fake" }

func (d *fakeDialer) Dial(time.Duration) (Conn, error) {
	if d.failOnDial {
		d.t.Fatal("dial should not be called")
	}
	return d.conn, nil
}

func TestSendCommand_PreambleFailureIsSwallowed(t *testing.T) {
	conn := &fakeConn{
		writeErrs: []error{errors.New("broken pipe"), nil},
		reads:     [][]byte{{0xFE}},
	}
	s := NewSession(Params{Host: "x", SendWakePreamble: true}, WithDialer(&fakeDialer{t: t, conn: conn}))

	rep, err := s.SendCommand([]byte{0xA0, 0x60, 0x00, 0x00})
	require.NoError(t, err)
	require.NotNil(t, rep.Preamble)
	assert.False(t, rep.Preamble.OK())
	assert.Equal(t, esframe.MustEncode([]byte{0xA0, 0x60, 0x00, 0x00}), conn.written.Bytes())
	assert.Equal(t, []byte{0xFE}, rep.Raw)
	assert.True(t, conn.closed.Load())
}

func TestSendCommand_FrameWriteErrorIsFatal(t *testing.T) {
	conn := &fakeConn{writeErrs: []error{nil, errors.New("broken pipe")}}
	s := NewSession(Params{Host: "x", SendWakePreamble: true}, WithDialer(&fakeDialer{t: t, conn: conn}))

	_, err := s.SendCommand([]byte{0xA0, 0x60, 0x00, 0x00})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrWrite)
	var we *WriteError
	assert.True(t, errors.As(err, &we))
	assert.True(t, conn.closed.Load(), "失败路径也必须关闭链路")
}

func TestSendCommand_MetricsCallbacks(t *testing.T) {
	conn := &fakeConn{reads: [][]byte{{0x01, 0x02, 0x03}}}
	s := NewSession(Params{Host: "x", SendWakePreamble: true, LingerAfterSend: true},
		WithDialer(&fakeDialer{t: t, conn: conn}), WithPreambleDelay(time.Millisecond))

	var connects, recv, sent int
	s.SetMetricsCallbacks(func(err error) {
		if err == nil {
			connects++
		}
	}, func(n int) { recv += n }, func(n int) { sent += n })

	_, err := s.SendCommand([]byte{0xA0, 0x55, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 1, connects)
	assert.Equal(t, 3, recv)
	assert.Equal(t, 1+6, sent)
}

func TestHoldAndListen_CollectsNotificationsAndKeepalives(t *testing.T) {
	n1 := esframe.MustEncode([]byte{0xA8, 0x82, 0x00, 0x01})
	n2 := esframe.MustEncode([]byte{0xA8, 0x82, 0x00, 0x00})

	var fe atomic.Int64
	host, port := startDevice(t, func(c net.Conn) {
		go func() {
			buf := make([]byte, 64)
			for {
				n, err := c.Read(buf)
				for _, b := range buf[:n] {
					if b == esframe.WakeByte {
						fe.Add(1)
					}
				}
				if err != nil {
					return
				}
			}
		}()
		time.Sleep(100 * time.Millisecond)
		_, _ = c.Write(n1)
		time.Sleep(200 * time.Millisecond)
		_, _ = c.Write(n2)
		time.Sleep(time.Second)
	})

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: time.Second},
		WithKeepaliveInterval(100*time.Millisecond))

	start := time.Now()
	capt, err := s.HoldAndListen(600*time.Millisecond, true)
	elapsed := time.Since(start)
	require.NoError(t, err)

	assert.Equal(t, append(append([]byte{}, n1...), n2...), capt.Raw)
	assert.GreaterOrEqual(t, capt.KeepalivesSent, 4)
	assert.Zero(t, capt.KeepaliveFailures)
	assert.GreaterOrEqual(t, elapsed, 600*time.Millisecond)
	assert.Less(t, elapsed, 1200*time.Millisecond)
	assert.Eventually(t, func() bool { return fe.Load() >= 4 }, time.Second, 10*time.Millisecond)
}

func TestHoldAndListen_NoKeepalive(t *testing.T) {
	got := make(chan []byte, 1)
	host, port := startDevice(t, func(c net.Conn) { got <- drain(c) })

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: time.Second})
	capt, err := s.HoldAndListen(300*time.Millisecond, false)
	require.NoError(t, err)
	assert.Zero(t, capt.KeepalivesSent)
	assert.Empty(t, capt.Raw)
	assert.Empty(t, <-got, "关闭保活时不应写出任何字节")
}

func TestHoldAndListen_PeerCloseStillHonoursDuration(t *testing.T) {
	host, port := startDevice(t, func(c net.Conn) {
		_, _ = c.Write([]byte{0xFE})
	})

	s := NewSession(Params{Host: host, Port: port, ConnectTimeout: time.Second},
		WithKeepaliveInterval(50*time.Millisecond))
	start := time.Now()
	capt, err := s.HoldAndListen(400*time.Millisecond, false)
	require.NoError(t, err)
	assert.True(t, capt.PeerClosed)
	assert.Equal(t, []byte{0xFE}, capt.Raw)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond, "只按墙钟时间结束")
}

func TestHoldAndListen_ConnectError(t *testing.T) {
	s := NewSession(Params{Host: "127.0.0.1", Port: closedPort(t), ConnectTimeout: time.Second})
	_, err := s.HoldAndListen(time.Second, true)
	assert.ErrorIs(t, err, ErrConnect)
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(Params{Host: "avr.local"})
	p := s.Params()
	assert.Equal(t, DefaultPort, p.Port)
	assert.Equal(t, DefaultTimeout, p.ConnectTimeout)
	assert.Equal(t, "avr.local:6001", p.Addr())
	assert.Equal(t, "avr.local:6001", s.dialer.Addr())
}
