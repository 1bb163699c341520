package transport

import (
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/protocol/esframe"
)

const (
	DefaultPort    = 6001
	DefaultTimeout = 3 * time.Second

	// 部分固件会忽略新连接上的第一帧，除非先收到一个 0xFE
	DefaultPreambleDelay     = 50 * time.Millisecond
	DefaultShortRead         = 200 * time.Millisecond
	DefaultKeepaliveInterval = 200 * time.Millisecond
)

// Params 会话参数，构造后不可变
type Params struct {
	Host string
	Port int
	// ConnectTimeout 建链超时，同时作为 linger 模式下自适应接收的总超时
	ConnectTimeout   time.Duration
	SendWakePreamble bool
	LingerAfterSend  bool
}

// Addr host:port
func (p Params) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Reply 单条命令的结果
type Reply struct {
	Frame    []byte     // 实际发出的帧
	Raw      []byte     // 收到的原始字节，可能为空
	Preamble *SideWrite // 未发送唤醒字节时为 nil
	Lingered bool
	// ReadErr 非超时的读错误（如连接被重置）；已收字节仍保留在 Raw
	ReadErr error
	Elapsed time.Duration
}

// Capture 保持监听的结果
type Capture struct {
	Raw               []byte
	KeepalivesSent    int
	KeepaliveFailures int
	LastKeepaliveErr  error
	PeerClosed        bool
	ReadErr           error
	Elapsed           time.Duration
}

// Session 设备会话：每个操作独占一条链路，任何路径退出都会关闭
type Session struct {
	params        Params
	dialer        Dialer
	logger        *zap.Logger
	idleWindow    time.Duration
	shortRead     time.Duration
	preambleDelay time.Duration
	keepalive     time.Duration

	// 可选指标回调
	onConnect   func(err error)
	onRecvBytes func(n int)
	onSentBytes func(n int)
}

// Option 会话可选项
type Option func(*Session)

// WithDialer 替换链路拨号器（串口或测试）
func WithDialer(d Dialer) Option { return func(s *Session) { s.dialer = d } }

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

// WithIdleWindow 覆盖自适应接收的空闲窗口
func WithIdleWindow(d time.Duration) Option { return func(s *Session) { s.idleWindow = d } }

// WithShortRead 覆盖非 linger 模式的单次读超时
func WithShortRead(d time.Duration) Option { return func(s *Session) { s.shortRead = d } }

// WithPreambleDelay 覆盖唤醒字节后的等待
func WithPreambleDelay(d time.Duration) Option { return func(s *Session) { s.preambleDelay = d } }

// WithKeepaliveInterval 覆盖保持监听的节拍
func WithKeepaliveInterval(d time.Duration) Option { return func(s *Session) { s.keepalive = d } }

// NewSession 创建会话；默认通过 TCP 连接 Params.Addr()
func NewSession(p Params, opts ...Option) *Session {
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = DefaultTimeout
	}
	s := &Session{
		params:        p,
		idleWindow:    DefaultIdleWindow,
		shortRead:     DefaultShortRead,
		preambleDelay: DefaultPreambleDelay,
		keepalive:     DefaultKeepaliveInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.dialer == nil {
		s.dialer = TCPDialer{Host: p.Host, Port: p.Port}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Params 返回会话参数副本
func (s *Session) Params() Params { return s.params }

// Addr 链路地址（TCP 为 host:port，串口为 serial://path）
func (s *Session) Addr() string { return s.dialer.Addr() }

// SetMetricsCallbacks 设置指标回调
func (s *Session) SetMetricsCallbacks(onConnect func(error), onRecvBytes, onSentBytes func(int)) {
	s.onConnect, s.onRecvBytes, s.onSentBytes = onConnect, onRecvBytes, onSentBytes
}

// Connect 单次建链，失败返回 *ConnectError
func (s *Session) Connect() (Conn, error) {
	c, err := s.dialer.Dial(s.params.ConnectTimeout)
	if s.onConnect != nil {
		s.onConnect(err)
	}
	if err != nil {
		return nil, &ConnectError{Addr: s.dialer.Addr(), Err: err}
	}
	return c, nil
}

// SendCommand 发送一条命令并按模式收回复
//
// 没有回复是合法结果（协议无应答保证），返回空 Raw 而不是错误。
func (s *Session) SendCommand(payload []byte) (*Reply, error) {
	frame, err := esframe.Encode(payload)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	conn, err := s.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rep := &Reply{Frame: frame}
	if s.params.SendWakePreamble {
		w := s.sideWrite(conn, "preamble")
		rep.Preamble = &w
		if w.OK() {
			time.Sleep(s.preambleDelay)
		}
	}

	if err := s.write(conn, frame); err != nil {
		return nil, err
	}

	if s.params.LingerAfterSend {
		rx := &Receiver{
			TotalTimeout: s.params.ConnectTimeout,
			IdleWindow:   s.idleWindow,
			OnRecvBytes:  s.onRecvBytes,
		}
		rep.Raw, rep.ReadErr = rx.Read(conn)
		rep.Lingered = true
	} else {
		rep.Raw, rep.ReadErr = s.readOnce(conn)
	}
	rep.Elapsed = time.Since(start)

	if rep.ReadErr != nil {
		s.logger.Warn("reply read ended with error",
			zap.String("addr", s.dialer.Addr()),
			zap.Int("bytes", len(rep.Raw)),
			zap.Error(rep.ReadErr))
	}
	s.logger.Debug("command sent",
		zap.String("addr", s.dialer.Addr()),
		zap.Binary("frame", frame),
		zap.Int("reply_bytes", len(rep.Raw)),
		zap.Bool("linger", rep.Lingered),
		zap.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// HoldAndListen 保持链路 d 时长，被动收集设备主动上报
// 只按墙钟时间结束；对端关闭后停止读取，但仍等到时长用尽
func (s *Session) HoldAndListen(d time.Duration, keepalive bool) (*Capture, error) {
	start := time.Now()
	conn, err := s.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	end := start.Add(d)
	capt := &Capture{}
	buf := make([]byte, 4096)
	readable := true

	for now := time.Now(); now.Before(end); now = time.Now() {
		tick := earliest(now.Add(s.keepalive), end)

		if keepalive {
			w := s.sideWrite(conn, "keepalive")
			capt.KeepalivesSent++
			if !w.OK() {
				capt.KeepaliveFailures++
				capt.LastKeepaliveErr = w.Err
			}
		}

		for readable && time.Now().Before(tick) {
			if err := conn.SetReadDeadline(tick); err != nil {
				readable = false
				capt.ReadErr = err
				break
			}
			n, err := conn.Read(buf)
			if n > 0 {
				capt.Raw = append(capt.Raw, buf[:n]...)
				if s.onRecvBytes != nil {
					s.onRecvBytes(n)
				}
			}
			if err != nil {
				if isTimeout(err) {
					break
				}
				readable = false
				if errors.Is(err, io.EOF) {
					capt.PeerClosed = true
				} else {
					capt.ReadErr = err
				}
				s.logger.Debug("hold: stop reading",
					zap.String("addr", s.dialer.Addr()),
					zap.Bool("peer_closed", capt.PeerClosed),
					zap.Error(err))
			}
		}
		if !readable {
			time.Sleep(time.Until(tick))
		}
	}
	capt.Elapsed = time.Since(start)

	s.logger.Debug("hold finished",
		zap.String("addr", s.dialer.Addr()),
		zap.Int("bytes", len(capt.Raw)),
		zap.Int("keepalives", capt.KeepalivesSent),
		zap.Int("keepalive_failures", capt.KeepaliveFailures),
		zap.Duration("elapsed", capt.Elapsed))
	return capt, nil
}

// write 写命令帧，失败即致命
func (s *Session) write(conn Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.params.ConnectTimeout))
	n, err := conn.Write(frame)
	if err == nil && n < len(frame) {
		err = io.ErrShortWrite
	}
	if s.onSentBytes != nil && n > 0 {
		s.onSentBytes(n)
	}
	if err != nil {
		return &WriteError{N: n, Err: err}
	}
	return nil
}

// sideWrite 写单个 0xFE；失败只记录日志
func (s *Session) sideWrite(conn Conn, kind string) SideWrite {
	_ = conn.SetWriteDeadline(time.Now().Add(s.shortRead))
	n, err := conn.Write([]byte{esframe.WakeByte})
	if s.onSentBytes != nil && n > 0 {
		s.onSentBytes(n)
	}
	if err != nil {
		s.logger.Debug("best-effort write failed",
			zap.String("kind", kind),
			zap.String("addr", s.dialer.Addr()),
			zap.Error(err))
	}
	return SideWrite{At: time.Now(), Err: err}
}

// readOnce 非 linger 模式：一次短读，拿到多少算多少
func (s *Session) readOnce(conn Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(s.shortRead)); err != nil {
		return nil, err
	}
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if n > 0 && s.onRecvBytes != nil {
		s.onRecvBytes(n)
	}
	if err != nil && !isTimeout(err) && !errors.Is(err, io.EOF) {
		return buf[:n], err
	}
	return buf[:n], nil
}
