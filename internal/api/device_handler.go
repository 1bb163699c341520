package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/control"
	"github.com/taoyao-code/esctl/internal/inputs"
	"github.com/taoyao-code/esctl/internal/protocol/escmd"
	"github.com/taoyao-code/esctl/internal/protocol/esframe"
	"github.com/taoyao-code/esctl/internal/render"
	"github.com/taoyao-code/esctl/internal/transport"
)

// DeviceHandler 接收机控制API处理器
type DeviceHandler struct {
	svc    *control.Service
	table  *inputs.Table
	ctl    cfgpkg.ControlConfig
	logger *zap.Logger
}

// NewDeviceHandler 创建Handler
func NewDeviceHandler(svc *control.Service, table *inputs.Table, ctl cfgpkg.ControlConfig, logger *zap.Logger) *DeviceHandler {
	if table == nil {
		table = inputs.Default()
	}
	return &DeviceHandler{svc: svc, table: table, ctl: ctl, logger: logger}
}

// PowerRequest 电源命令
type PowerRequest struct {
	State string `json:"state" binding:"required,oneof=on off" example:"on"`
}

// VolumeRequest 音量命令
type VolumeRequest struct {
	Direction string `json:"direction" binding:"required,oneof=up down" example:"up"`
}

// InputRequest 切换输入源；name 与 code 二选一
type InputRequest struct {
	Name string `json:"name,omitempty" example:"hdmi1"`
	Code string `json:"code,omitempty" example:"21"`
}

// RawRequest 原始载荷
type RawRequest struct {
	Payload string `json:"payload" binding:"required" example:"A0 42 00 21"`
	Linger  *bool  `json:"linger,omitempty"`
}

// QueryRequest 查询并保持监听
type QueryRequest struct {
	Target      string  `json:"target" binding:"required,oneof=power raw" example:"power"`
	Payload     string  `json:"payload,omitempty" example:"A1 00"`
	HoldSeconds float64 `json:"hold_seconds,omitempty" example:"3"`
}

// MonitorRequest 被动监听
type MonitorRequest struct {
	Seconds   float64 `json:"seconds,omitempty" example:"10"`
	Keepalive *bool   `json:"keepalive,omitempty"`
}

// InputView 输入源表项
type InputView struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// CaptureView 保持监听的结果
type CaptureView struct {
	render.Summary
	KeepalivesSent    int    `json:"keepalives_sent"`
	KeepaliveFailures int    `json:"keepalive_failures"`
	PeerClosed        bool   `json:"peer_closed"`
	ReadError         string `json:"read_error,omitempty"`
	ElapsedMs         int64  `json:"elapsed_ms"`
}

// OutcomeView 一次操作的响应
type OutcomeView struct {
	ID            string          `json:"id"`
	Op            string          `json:"op"`
	Frame         string          `json:"frame,omitempty"`
	Payload       string          `json:"payload,omitempty"`
	PreambleError string          `json:"preamble_error,omitempty"`
	ReadError     string          `json:"read_error,omitempty"`
	Reply         *render.Summary `json:"reply,omitempty"`
	Capture       *CaptureView    `json:"capture,omitempty"`
	ElapsedMs     int64           `json:"elapsed_ms"`
}

func (h *DeviceHandler) view(out *control.Outcome) OutcomeView {
	ann := h.svc.Annotator()
	v := OutcomeView{
		ID:        out.ID,
		Op:        out.Op,
		ElapsedMs: out.Elapsed.Milliseconds(),
		Reply:     out.ReplySummary(ann),
	}
	if out.Frame != nil {
		v.Frame = escmd.Hex(out.Frame)
		v.Payload = escmd.Hex(out.Payload)
	}
	if r := out.Reply; r != nil {
		if r.Preamble != nil && !r.Preamble.OK() {
			v.PreambleError = r.Preamble.Err.Error()
		}
		if r.ReadErr != nil {
			v.ReadError = r.ReadErr.Error()
		}
	}
	if c := out.Capture; c != nil {
		cv := &CaptureView{
			Summary:           *out.CaptureSummary(ann),
			KeepalivesSent:    c.KeepalivesSent,
			KeepaliveFailures: c.KeepaliveFailures,
			PeerClosed:        c.PeerClosed,
			ElapsedMs:         c.Elapsed.Milliseconds(),
		}
		if c.ReadErr != nil {
			cv.ReadError = c.ReadErr.Error()
		}
		v.Capture = cv
	}
	return v
}

// badRequest 参数错误统一返回 400
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
}

// fail 按错误类型映射状态码
func (h *DeviceHandler) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	kind := "internal"
	switch {
	case errors.Is(err, esframe.ErrInvalidPayloadSize), errors.Is(err, escmd.ErrBadHex), errors.Is(err, inputs.ErrUnknownInput):
		badRequest(c, err)
		return
	case errors.Is(err, control.ErrCircuitOpen):
		code, kind = http.StatusServiceUnavailable, "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code, kind = http.StatusServiceUnavailable, "busy"
	case errors.Is(err, transport.ErrConnect):
		code, kind = http.StatusBadGateway, "connect_failed"
	case errors.Is(err, transport.ErrWrite):
		code, kind = http.StatusBadGateway, "write_failed"
	}
	h.logger.Warn("device operation failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(code, gin.H{"error": kind, "message": err.Error()})
}

func (h *DeviceHandler) respond(c *gin.Context, out *control.Outcome, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.view(out))
}

// holdFor 秒数转时长：<=0 取默认值，超过上限截断
func (h *DeviceHandler) holdFor(seconds float64, def time.Duration) time.Duration {
	d := def
	if seconds > 0 {
		d = time.Duration(seconds * float64(time.Second))
	}
	if h.ctl.MaxHold > 0 && d > h.ctl.MaxHold {
		d = h.ctl.MaxHold
	}
	return d
}

// ListInputs 输入源列表
// @Summary 查询输入源列表
// @Description 返回内置及覆盖文件合并后的输入源名称与码值
// @Tags 接收机
// @Produce json
// @Success 200 {object} map[string]interface{} "成功"
// @Security ApiKeyAuth
// @Router /api/v1/inputs [get]
func (h *DeviceHandler) ListInputs(c *gin.Context) {
	names := h.table.Names()
	items := make([]InputView, 0, len(names))
	for _, n := range names {
		code, _ := h.table.Resolve(n)
		items = append(items, InputView{Name: n, Code: fmt.Sprintf("0x%02X", code)})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(items), "inputs": items})
}

// Power 电源开关
// @Summary 电源开关
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body PowerRequest true "on 或 off"
// @Success 200 {object} OutcomeView
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Failure 502 {object} map[string]interface{} "设备连接失败"
// @Failure 503 {object} map[string]interface{} "熔断或设备忙"
// @Security ApiKeyAuth
// @Router /api/v1/power [post]
func (h *DeviceHandler) Power(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.Run(c.Request.Context(), control.OpPower, escmd.Power(req.State == "on"), nil)
	h.respond(c, out, err)
}

// Volume 音量步进
// @Summary 音量加减一档
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body VolumeRequest true "up 或 down"
// @Success 200 {object} OutcomeView
// @Failure 400 {object} map[string]interface{} "参数错误"
// @Security ApiKeyAuth
// @Router /api/v1/volume [post]
func (h *DeviceHandler) Volume(c *gin.Context) {
	var req VolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.Run(c.Request.Context(), control.OpVolume, escmd.Volume(req.Direction == "up"), nil)
	h.respond(c, out, err)
}

// Input 切换输入源
// @Summary 切换输入源
// @Description name 按输入源表解析，code 为十六进制码值
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body InputRequest true "name 或 code"
// @Success 200 {object} OutcomeView
// @Failure 400 {object} map[string]interface{} "未知输入源"
// @Security ApiKeyAuth
// @Router /api/v1/input [post]
func (h *DeviceHandler) Input(c *gin.Context) {
	var req InputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var (
		code byte
		err  error
	)
	switch {
	case req.Name != "" && req.Code != "":
		badRequest(c, errors.New("name and code are mutually exclusive"))
		return
	case req.Name != "":
		code, err = h.table.Resolve(req.Name)
	case req.Code != "":
		code, err = h.table.ResolveCode(req.Code)
	default:
		badRequest(c, errors.New("name or code is required"))
		return
	}
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.Run(c.Request.Context(), control.OpInput, escmd.Input(code), nil)
	h.respond(c, out, err)
}

// Raw 发送原始载荷
// @Summary 发送原始载荷
// @Description payload 为十六进制，允许空格、逗号、冒号、短横线分隔
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body RawRequest true "载荷"
// @Success 200 {object} OutcomeView
// @Failure 400 {object} map[string]interface{} "载荷非法"
// @Security ApiKeyAuth
// @Router /api/v1/raw [post]
func (h *DeviceHandler) Raw(c *gin.Context) {
	var req RawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	payload, err := escmd.ParseHex(req.Payload)
	if err != nil {
		badRequest(c, err)
		return
	}
	out, err := h.svc.Run(c.Request.Context(), control.OpRaw, payload, req.Linger)
	h.respond(c, out, err)
}

// Query 查询后保持监听
// @Summary 查询并收集主动上报
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body QueryRequest true "power 或 raw"
// @Success 200 {object} OutcomeView
// @Security ApiKeyAuth
// @Router /api/v1/query [post]
func (h *DeviceHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	payload := escmd.QueryPower()
	if req.Target == "raw" {
		if strings.TrimSpace(req.Payload) == "" {
			badRequest(c, errors.New("payload is required for raw query"))
			return
		}
		p, err := escmd.ParseHex(req.Payload)
		if err != nil {
			badRequest(c, err)
			return
		}
		payload = p
	}
	out, err := h.svc.Query(c.Request.Context(), payload, h.holdFor(req.HoldSeconds, h.ctl.QueryHold))
	h.respond(c, out, err)
}

// Monitor 被动监听
// @Summary 被动监听设备上报
// @Tags 接收机
// @Accept json
// @Produce json
// @Param request body MonitorRequest false "时长与保活"
// @Success 200 {object} OutcomeView
// @Security ApiKeyAuth
// @Router /api/v1/monitor [post]
func (h *DeviceHandler) Monitor(c *gin.Context) {
	var req MonitorRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	keepalive := true
	if req.Keepalive != nil {
		keepalive = *req.Keepalive
	}
	out, err := h.svc.Monitor(c.Request.Context(), h.holdFor(req.Seconds, h.ctl.MonitorDuration), keepalive)
	h.respond(c, out, err)
}

// BreakerStatus 熔断器状态
// @Summary 查询熔断器状态
// @Tags 运维
// @Produce json
// @Success 200 {object} control.BreakerStats
// @Security ApiKeyAuth
// @Router /api/v1/breaker [get]
func (h *DeviceHandler) BreakerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Breaker().Stats())
}

// ResetBreaker 手动恢复熔断器
// @Summary 手动恢复熔断器
// @Description 设备修复后立即放行，不等待熔断超时
// @Tags 运维
// @Produce json
// @Success 200 {object} control.BreakerStats
// @Security ApiKeyAuth
// @Router /api/v1/breaker/reset [post]
func (h *DeviceHandler) ResetBreaker(c *gin.Context) {
	cb := h.svc.Breaker()
	before := cb.State()
	cb.Reset()
	h.logger.Warn("circuit breaker reset manually", zap.String("from", before.String()))
	c.JSON(http.StatusOK, cb.Stats())
}
