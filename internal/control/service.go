package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/metrics"
	"github.com/taoyao-code/esctl/internal/notify"
	"github.com/taoyao-code/esctl/internal/protocol/escmd"
	"github.com/taoyao-code/esctl/internal/protocol/esframe"
	"github.com/taoyao-code/esctl/internal/render"
	"github.com/taoyao-code/esctl/internal/transport"
)

// 操作名（日志与指标标签）
const (
	OpPower   = "power"
	OpVolume  = "volume"
	OpInput   = "input"
	OpRaw     = "raw"
	OpQuery   = "query"
	OpMonitor = "monitor"
)

// Outcome 一次设备操作的结果
type Outcome struct {
	ID      string
	Op      string
	Payload []byte
	Frame   []byte
	Reply   *transport.Reply   // 命令回复；纯监听为 nil
	Capture *transport.Capture // 保持监听结果；纯命令为 nil
	Elapsed time.Duration
}

// ReplySummary 命令回复摘要
func (o *Outcome) ReplySummary(ann escmd.Annotator) *render.Summary {
	if o.Reply == nil {
		return nil
	}
	s := render.Summarize(o.Reply.Raw, ann)
	return &s
}

// CaptureSummary 监听结果摘要
func (o *Outcome) CaptureSummary(ann escmd.Annotator) *render.Summary {
	if o.Capture == nil {
		return nil
	}
	s := render.Summarize(o.Capture.Raw, ann)
	return &s
}

// Options 服务依赖；除 Params 外均可为空
type Options struct {
	Params         transport.Params
	SessionOptions []transport.Option
	Pacer          *Pacer
	Breaker        *CircuitBreaker
	Metrics        *metrics.AppMetrics
	Publisher      notify.Publisher
	Annotator      escmd.Annotator
	Logger         *zap.Logger
}

// Service 设备操作编排：一次操作一条链路，同一时刻只有一条链路打开
type Service struct {
	params    transport.Params
	sessOpts  []transport.Option
	pacer     *Pacer
	breaker   *CircuitBreaker
	metrics   *metrics.AppMetrics
	publisher notify.Publisher
	annotator escmd.Annotator
	logger    *zap.Logger
	sem       chan struct{}
}

// NewService 创建服务
func NewService(o Options) *Service {
	s := &Service{
		params:    o.Params,
		sessOpts:  o.SessionOptions,
		pacer:     o.Pacer,
		breaker:   o.Breaker,
		metrics:   o.Metrics,
		publisher: o.Publisher,
		annotator: o.Annotator,
		logger:    o.Logger,
		sem:       make(chan struct{}, 1),
	}
	if s.pacer == nil {
		s.pacer = NewPacer(0, 0)
	}
	if s.breaker == nil {
		s.breaker = NewCircuitBreaker(0, 0)
	}
	if s.publisher == nil {
		s.publisher = notify.NopPublisher{}
	}
	if s.annotator == nil {
		s.annotator = escmd.StatusAnnotator{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics != nil {
		m := s.metrics
		s.breaker.SetStateChangeCallback(func(_, to BreakerState) {
			m.BreakerState.Set(float64(to))
		})
	}
	return s
}

// Annotator 服务使用的注解钩子
func (s *Service) Annotator() escmd.Annotator { return s.annotator }

// Breaker 熔断器（健康检查使用）
func (s *Service) Breaker() *CircuitBreaker { return s.breaker }

// Params 默认会话参数
func (s *Service) Params() transport.Params { return s.params }

// Addr 设备链路地址
func (s *Service) Addr() string { return s.newSession(s.params, s.logger).Addr() }

// CheckLink 设备空闲时打开一次链路后立即关闭，不发送任何字节
// 设备正被其他操作占用时不等待也不拨号，直接返回 inUse=true
func (s *Service) CheckLink(timeout time.Duration) (inUse bool, err error) {
	select {
	case s.sem <- struct{}{}:
	default:
		return true, nil
	}
	defer func() { <-s.sem }()

	p := s.params
	if timeout > 0 {
		p.ConnectTimeout = timeout
	}
	conn, err := s.newSession(p, s.logger).Connect()
	if err != nil {
		return false, err
	}
	_ = conn.Close()
	return false, nil
}

func (s *Service) newSession(p transport.Params, log *zap.Logger) *transport.Session {
	opts := append([]transport.Option{transport.WithLogger(log)}, s.sessOpts...)
	sess := transport.NewSession(p, opts...)
	if s.metrics != nil {
		sess.SetMetricsCallbacks(s.metrics.OnConnect, s.metrics.OnRecvBytes, s.metrics.OnSentBytes)
	}
	return sess
}

// acquire 占用设备；ctx 结束前拿不到则放弃
func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("device busy: %w", ctx.Err())
	}
}

// gate 依次经过：设备占用、发送节流、熔断检查
func (s *Service) gate(ctx context.Context, op string) (func(), error) {
	release, err := s.acquire(ctx)
	if err != nil {
		s.count(op, "rejected")
		return nil, err
	}
	if err := s.pacer.Wait(ctx); err != nil {
		release()
		s.count(op, "rejected")
		return nil, fmt.Errorf("pace: %w", err)
	}
	if err := s.breaker.Allow(); err != nil {
		release()
		s.count(op, "rejected")
		return nil, err
	}
	return release, nil
}

func (s *Service) count(op, result string) {
	if s.metrics != nil {
		s.metrics.CommandTotal.WithLabelValues(op, result).Inc()
	}
}

func (s *Service) observe(mode string, d time.Duration, raw []byte) {
	if s.metrics == nil {
		return
	}
	s.metrics.SessionDuration.WithLabelValues(mode).Observe(d.Seconds())
	s.metrics.ObserveScan(esframe.Scan(raw))
}

// prepare 组帧并分配操作 ID；载荷非法时不占用设备
func (s *Service) prepare(op string, payload []byte) (*Outcome, *zap.Logger, error) {
	frame, err := esframe.Encode(payload)
	if err != nil {
		return nil, nil, err
	}
	out := &Outcome{ID: uuid.NewString(), Op: op, Payload: payload, Frame: frame}
	return out, s.logger.With(zap.String("op_id", out.ID), zap.String("op", op)), nil
}

// send 在已占用的链路上发送命令；调用方已通过 gate
func (s *Service) send(out *Outcome, linger *bool, log *zap.Logger) error {
	p := s.params
	if linger != nil {
		p.LingerAfterSend = *linger
	}
	start := time.Now()
	rep, err := s.newSession(p, log).SendCommand(out.Payload)
	s.breaker.Record(errors.Is(err, transport.ErrConnect))
	out.Elapsed = time.Since(start)
	if err != nil {
		log.Error("send command failed", zap.Binary("frame", out.Frame), zap.Error(err))
		return err
	}
	out.Reply = rep
	s.observe("command", out.Elapsed, rep.Raw)
	log.Info("command sent",
		zap.String("frame", escmd.Hex(out.Frame)),
		zap.Int("reply_bytes", len(rep.Raw)),
		zap.Duration("elapsed", out.Elapsed))
	return nil
}

// Run 发送一条命令；linger 为 nil 时沿用默认参数
func (s *Service) Run(ctx context.Context, op string, payload []byte, linger *bool) (*Outcome, error) {
	out, log, err := s.prepare(op, payload)
	if err != nil {
		s.count(op, "error")
		return nil, err
	}

	release, err := s.gate(ctx, op)
	if err != nil {
		log.Warn("command rejected", zap.Error(err))
		return nil, err
	}
	defer release()

	if err := s.send(out, linger, log); err != nil {
		s.count(op, "error")
		return nil, err
	}
	s.count(op, "ok")
	return out, nil
}

// hold 保持监听并转发帧；调用方已通过 gate
func (s *Service) hold(ctx context.Context, out *Outcome, d time.Duration, keepalive bool, log *zap.Logger) error {
	start := time.Now()
	capt, err := s.newSession(s.params, log).HoldAndListen(d, keepalive)
	s.breaker.Record(errors.Is(err, transport.ErrConnect))
	if err != nil {
		return err
	}
	out.Capture = capt
	s.observe("hold", time.Since(start), capt.Raw)

	base := notify.Notification{
		OpID:   out.ID,
		Op:     out.Op,
		Device: s.Addr(),
		At:     time.Now(),
	}
	entries := render.Entries(esframe.Scan(capt.Raw), s.annotator)
	if n, err := notify.PublishFrames(ctx, s.publisher, base, entries); err != nil {
		// 转发是旁路，失败不影响结果
		log.Warn("publish notifications failed", zap.Int("published", n), zap.Error(err))
	}
	log.Info("hold finished",
		zap.Int("bytes", len(capt.Raw)),
		zap.Int("keepalives", capt.KeepalivesSent),
		zap.Bool("peer_closed", capt.PeerClosed),
		zap.Duration("elapsed", capt.Elapsed))
	return nil
}

// Query 先以 linger 模式发送查询，再保持链路监听 holdFor，收集设备主动上报
// 两个阶段之间不释放设备，其他请求无法插入
func (s *Service) Query(ctx context.Context, payload []byte, holdFor time.Duration) (*Outcome, error) {
	out, log, err := s.prepare(OpQuery, payload)
	if err != nil {
		s.count(OpQuery, "error")
		return nil, err
	}

	release, err := s.gate(ctx, OpQuery)
	if err != nil {
		log.Warn("query rejected", zap.Error(err))
		return nil, err
	}
	defer release()

	linger := true
	if err := s.send(out, &linger, log); err != nil {
		s.count(OpQuery, "error")
		return nil, err
	}
	if err := s.hold(ctx, out, holdFor, true, log); err != nil {
		s.count(OpQuery, "error")
		log.Error("query hold failed", zap.Error(err))
		return nil, err
	}
	s.count(OpQuery, "ok")
	out.Elapsed += out.Capture.Elapsed
	return out, nil
}

// Monitor 打开链路被动监听 d 时长
func (s *Service) Monitor(ctx context.Context, d time.Duration, keepalive bool) (*Outcome, error) {
	out := &Outcome{ID: uuid.NewString(), Op: OpMonitor}
	log := s.logger.With(zap.String("op_id", out.ID), zap.String("op", OpMonitor))

	release, err := s.gate(ctx, OpMonitor)
	if err != nil {
		log.Warn("monitor rejected", zap.Error(err))
		return nil, err
	}
	defer release()

	log.Info("monitoring", zap.String("addr", s.Addr()),
		zap.Duration("duration", d), zap.Bool("keepalive", keepalive))
	if err := s.hold(ctx, out, d, keepalive, log); err != nil {
		s.count(OpMonitor, "error")
		log.Error("monitor failed", zap.Error(err))
		return nil, err
	}
	s.count(OpMonitor, "ok")
	out.Elapsed = out.Capture.Elapsed
	return out, nil
}
