package control

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/esctl/internal/metrics"
	"github.com/taoyao-code/esctl/internal/notify"
	"github.com/taoyao-code/esctl/internal/protocol/escmd"
	"github.com/taoyao-code/esctl/internal/protocol/esframe"
	"github.com/taoyao-code/esctl/internal/transport"
)

var statusFrame = esframe.MustEncode([]byte{0xA8, 0x82, 0x00, 0x01})

// startDevice 模拟接收机：建链后立即上报一帧状态，然后读到对端关闭
func startDevice(t *testing.T) (string, int) {
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
				_, _ = c.Write(statusFrame)
				_, _ = io.Copy(io.Discard, c)
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

// startCountingDevice 同 startDevice，另记录同时打开的链路数峰值
func startCountingDevice(t *testing.T) (string, int, *atomic.Int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		wg         sync.WaitGroup
		open, peak atomic.Int32
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			n := open.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer open.Add(-1)
				defer c.Close()
				_, _ = c.Write(statusFrame)
				_, _ = io.Copy(io.Discard, c)
			}()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
	})
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, &peak
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.Notification
}

func (p *recordingPublisher) Publish(_ context.Context, n notify.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, n)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newTestService(t *testing.T, host string, port int, o Options) (*Service, *metrics.AppMetrics) {
	t.Helper()
	m := metrics.NewAppMetrics(prometheus.NewRegistry())
	o.Params = transport.Params{
		Host:             host,
		Port:             port,
		ConnectTimeout:   500 * time.Millisecond,
		SendWakePreamble: true,
		LingerAfterSend:  true,
	}
	o.SessionOptions = append(o.SessionOptions,
		transport.WithPreambleDelay(5*time.Millisecond),
		transport.WithKeepaliveInterval(50*time.Millisecond))
	o.Metrics = m
	if o.Pacer == nil {
		o.Pacer = NewPacer(100, 10)
	}
	return NewService(o), m
}

func TestService_Run(t *testing.T) {
	host, port := startDevice(t)
	svc, m := newTestService(t, host, port, Options{})

	out, err := svc.Run(context.Background(), OpPower, escmd.Power(true), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, esframe.MustEncode(escmd.Power(true)), out.Frame)
	require.NotNil(t, out.Reply)
	assert.Equal(t, statusFrame, out.Reply.Raw)
	assert.Nil(t, out.Capture)
	assert.Nil(t, out.CaptureSummary(svc.Annotator()))

	sum := out.ReplySummary(svc.Annotator())
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, "A8 82 status fields: 00 01 flags=0x01", sum.Entries[0].Annotation)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpPower, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FrameScanTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("ok")))
}

func TestService_RunInvalidPayload(t *testing.T) {
	svc, m := newTestService(t, "127.0.0.1", closedPort(t), Options{Breaker: NewCircuitBreaker(1, time.Hour)})

	_, err := svc.Run(context.Background(), OpRaw, make([]byte, 256), nil)
	assert.ErrorIs(t, err, esframe.ErrInvalidPayloadSize)
	assert.Equal(t, BreakerClosed, svc.Breaker().State(), "未建链不计入熔断")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpRaw, "error")))
	assert.Zero(t, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("error")))
}

func TestService_ConnectFailureTripsBreaker(t *testing.T) {
	svc, m := newTestService(t, "127.0.0.1", closedPort(t), Options{Breaker: NewCircuitBreaker(1, time.Hour)})
	ctx := context.Background()

	_, err := svc.Run(ctx, OpVolume, escmd.Volume(true), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrConnect)
	assert.Equal(t, BreakerOpen, svc.Breaker().State())
	assert.Equal(t, float64(BreakerOpen), testutil.ToFloat64(m.BreakerState))

	_, err = svc.Run(ctx, OpVolume, escmd.Volume(true), nil)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("error")), "熔断期间不再拨号")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpVolume, "rejected")))
}

func TestService_Monitor(t *testing.T) {
	host, port := startDevice(t)
	pub := &recordingPublisher{}
	svc, m := newTestService(t, host, port, Options{Publisher: pub})

	out, err := svc.Monitor(context.Background(), 200*time.Millisecond, true)
	require.NoError(t, err)
	require.NotNil(t, out.Capture)
	assert.Nil(t, out.Reply)
	assert.Equal(t, statusFrame, out.Capture.Raw)
	assert.GreaterOrEqual(t, out.Capture.KeepalivesSent, 2)
	assert.GreaterOrEqual(t, out.Elapsed, 200*time.Millisecond)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, out.ID, pub.msgs[0].OpID)
	assert.Equal(t, OpMonitor, pub.msgs[0].Op)
	assert.Equal(t, "frame", pub.msgs[0].Entry.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpMonitor, "ok")))
}

func TestService_Query(t *testing.T) {
	host, port := startDevice(t)
	pub := &recordingPublisher{}
	svc, _ := newTestService(t, host, port, Options{Publisher: pub})
	svc.params.LingerAfterSend = false

	out, err := svc.Query(context.Background(), escmd.QueryPower(), 150*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, out.Reply)
	require.NotNil(t, out.Capture)
	assert.True(t, out.Reply.Lingered, "查询总是 linger")
	assert.Equal(t, statusFrame, out.Reply.Raw)
	assert.Equal(t, statusFrame, out.Capture.Raw)
	assert.Len(t, pub.msgs, 1, "只转发保持阶段收到的帧")
}

func TestService_QueryCountsOnceAndHoldsDevice(t *testing.T) {
	host, port := startDevice(t)
	svc, m := newTestService(t, host, port, Options{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Query(context.Background(), escmd.QueryPower(), 300*time.Millisecond)
		assert.NoError(t, err)
	}()

	// 发送阶段与保持阶段之间设备始终被占用
	time.Sleep(30 * time.Millisecond)
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		inUse, err := svc.CheckLink(100 * time.Millisecond)
		require.NoError(t, err)
		assert.True(t, inUse)
		time.Sleep(20 * time.Millisecond)
	}
	<-done

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpQuery, "ok")))
	assert.Zero(t, testutil.ToFloat64(m.CommandTotal.WithLabelValues(OpQuery, "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("ok")), "发送与保持各建链一次")
}

func TestService_CheckLink(t *testing.T) {
	t.Run("设备空闲时建链后立即关闭", func(t *testing.T) {
		host, port := startDevice(t)
		svc, m := newTestService(t, host, port, Options{})

		inUse, err := svc.CheckLink(time.Second)
		require.NoError(t, err)
		assert.False(t, inUse)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("ok")))
	})

	t.Run("监听期间不另开链路", func(t *testing.T) {
		host, port, peak := startCountingDevice(t)
		svc, m := newTestService(t, host, port, Options{})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, err := svc.Monitor(context.Background(), 400*time.Millisecond, true)
			assert.NoError(t, err)
		}()
		time.Sleep(100 * time.Millisecond)

		inUse, err := svc.CheckLink(time.Second)
		require.NoError(t, err)
		assert.True(t, inUse)
		<-done

		assert.Equal(t, int32(1), peak.Load(), "同一时刻只有一条链路")
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DeviceConnectTotal.WithLabelValues("ok")), "占用期间探活不拨号")
	})

	t.Run("设备不可达", func(t *testing.T) {
		svc, _ := newTestService(t, "127.0.0.1", closedPort(t), Options{Breaker: NewCircuitBreaker(1, time.Hour)})
		inUse, err := svc.CheckLink(200 * time.Millisecond)
		assert.False(t, inUse)
		assert.ErrorIs(t, err, transport.ErrConnect)
		assert.Equal(t, BreakerClosed, svc.Breaker().State(), "探活不计入熔断")
	})
}
