package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/esctl/internal/protocol/esframe"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 设备链路与帧解析指标
type AppMetrics struct {
	DeviceConnectTotal  *prometheus.CounterVec   // labels: result=ok|error
	DeviceBytesSent     prometheus.Counter       // 含唤醒/保活字节
	DeviceBytesReceived prometheus.Counter       // 原始字节
	FrameScanTotal      *prometheus.CounterVec   // labels: result=ok|bad
	RawBytesTotal       prometheus.Counter       // 未归入任何帧的游离字节
	CommandTotal        *prometheus.CounterVec   // labels: op, result=ok|error|rejected
	SessionDuration     *prometheus.HistogramVec // labels: mode=command|hold
	BreakerState        prometheus.Gauge         // 0=closed 1=open 2=half_open
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		DeviceConnectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esctl_device_connect_total",
			Help: "Device link open attempts by result.",
		}, []string{"result"}),
		DeviceBytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esctl_device_bytes_sent_total",
			Help: "Total bytes written to the device, including wake/keepalive bytes.",
		}),
		DeviceBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esctl_device_bytes_received_total",
			Help: "Total bytes received from the device.",
		}),
		FrameScanTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esctl_frame_scan_total",
			Help: "Frames recognised in reply streams by checksum result.",
		}, []string{"result"}),
		RawBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esctl_raw_bytes_total",
			Help: "Reply bytes that did not belong to any frame.",
		}),
		CommandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "esctl_command_total",
			Help: "Device operations by op and result.",
		}, []string{"op", "result"}),
		SessionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "esctl_session_duration_seconds",
			Help:    "Wall-clock duration of device sessions.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10, 30, 60},
		}, []string{"mode"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esctl_circuit_breaker_state",
			Help: "Device circuit breaker state (0=closed, 1=open, 2=half_open).",
		}),
	}
	reg.MustRegister(m.DeviceConnectTotal, m.DeviceBytesSent, m.DeviceBytesReceived,
		m.FrameScanTotal, m.RawBytesTotal, m.CommandTotal, m.SessionDuration, m.BreakerState)
	return m
}

// OnConnect 会话建链回调
func (m *AppMetrics) OnConnect(err error) {
	if err != nil {
		m.DeviceConnectTotal.WithLabelValues("error").Inc()
		return
	}
	m.DeviceConnectTotal.WithLabelValues("ok").Inc()
}

// OnRecvBytes 会话收字节回调
func (m *AppMetrics) OnRecvBytes(n int) { m.DeviceBytesReceived.Add(float64(n)) }

// OnSentBytes 会话发字节回调
func (m *AppMetrics) OnSentBytes(n int) { m.DeviceBytesSent.Add(float64(n)) }

// ObserveScan 累计一次扫描结果
func (m *AppMetrics) ObserveScan(res esframe.ScanResult) {
	ok, bad, raw := res.Counts()
	m.FrameScanTotal.WithLabelValues("ok").Add(float64(ok))
	m.FrameScanTotal.WithLabelValues("bad").Add(float64(bad))
	m.RawBytesTotal.Add(float64(raw))
}
