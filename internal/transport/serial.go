package transport

import (
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SerialOptions RS-232C 参数；该口与网口使用同一套帧格式，出厂为 9600 8N1
type SerialOptions struct {
	Path     string `mapstructure:"path"`
	BaudRate int    `mapstructure:"baudRate"`
	DataBits int    `mapstructure:"dataBits"`
	StopBits int    `mapstructure:"stopBits"`
	Parity   string `mapstructure:"parity"`
}

// Normalize 校验参数并补默认值
func (o SerialOptions) Normalize() (SerialOptions, error) {
	opts := o
	if opts.Path == "" {
		return opts, fmt.Errorf("serial path is required")
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch p := strings.ToUpper(strings.TrimSpace(opts.Parity)); p {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	return opts, nil
}

// Mode 转换为 go.bug.st/serial 的打开参数
func (o SerialOptions) Mode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// SerialDialer 打开串口作为设备链路
type SerialDialer struct {
	Options SerialOptions

	open func(path string, mode *serial.Mode) (serial.Port, error)
}

// NewSerialDialer 创建串口拨号器
func NewSerialDialer(opts SerialOptions) *SerialDialer {
	return &SerialDialer{Options: opts, open: serial.Open}
}

func (d *SerialDialer) Addr() string { return "serial://" + d.Options.Path }

// Dial 打开串口；timeout 对本地设备无意义，忽略
func (d *SerialDialer) Dial(time.Duration) (Conn, error) {
	mode, err := d.Options.Mode()
	if err != nil {
		return nil, err
	}
	open := d.open
	if open == nil {
		open = serial.Open
	}
	port, err := open(d.Options.Path, mode)
	if err != nil {
		return nil, err
	}
	return &serialConn{port: port}, nil
}

// serialConn 把截止时间语义翻译成 serial.Port 的读超时
// 串口读超时返回 (0, nil)，这里改写为 net.Error 超时，接收器因此无需区分链路类型
type serialConn struct {
	port         serial.Port
	readDeadline time.Time
}

func (c *serialConn) Read(p []byte) (int, error) {
	if c.readDeadline.IsZero() {
		if err := c.port.SetReadTimeout(serial.NoTimeout); err != nil {
			return 0, err
		}
		return c.port.Read(p)
	}
	d := time.Until(c.readDeadline)
	if d <= 0 {
		return 0, timeoutError{}
	}
	if err := c.port.SetReadTimeout(d); err != nil {
		return 0, err
	}
	n, err := c.port.Read(p)
	if n == 0 && err == nil {
		return 0, timeoutError{}
	}
	return n, err
}

func (c *serialConn) Write(p []byte) (int, error) { return c.port.Write(p) }

func (c *serialConn) Close() error { return c.port.Close() }

func (c *serialConn) SetReadDeadline(t time.Time) error {
	c.readDeadline = t
	return nil
}

// SetWriteDeadline 串口写由驱动缓冲，不支持截止时间
func (c *serialConn) SetWriteDeadline(time.Time) error { return nil }
