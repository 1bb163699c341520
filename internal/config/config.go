package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/taoyao-code/esctl/internal/transport"
)

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// DeviceConfig 接收机链路配置
type DeviceConfig struct {
	Host              string                  `mapstructure:"host"`
	Port              int                     `mapstructure:"port"`
	Link              string                  `mapstructure:"link"` // tcp | serial
	ConnectTimeout    time.Duration           `mapstructure:"connectTimeout"`
	PreambleFE        bool                    `mapstructure:"preambleFE"`
	Linger            bool                    `mapstructure:"linger"`
	IdleWindow        time.Duration           `mapstructure:"idleWindow"`
	ShortRead         time.Duration           `mapstructure:"shortRead"`
	KeepaliveInterval time.Duration           `mapstructure:"keepaliveInterval"`
	Serial            transport.SerialOptions `mapstructure:"serial"`
}

// ControlConfig 网关侧的发送节流与熔断
type ControlConfig struct {
	RatePerSec       int           `mapstructure:"ratePerSec"`
	Burst            int           `mapstructure:"burst"`
	BreakerThreshold int           `mapstructure:"breakerThreshold"`
	BreakerTimeout   time.Duration `mapstructure:"breakerTimeout"`
	QueryHold        time.Duration `mapstructure:"queryHold"`
	MonitorDuration  time.Duration `mapstructure:"monitorDuration"`
	MaxHold          time.Duration `mapstructure:"maxHold"`
}

// HTTPConfig HTTP 网关配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	Auth         AuthConfig    `mapstructure:"auth"`
}

// AuthConfig API Key 认证；未启用时所有 /api 请求直接放行
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	APIKeys []string `mapstructure:"apiKeys"`
}

// LumberjackConfig 日志滚动（lumberjack）配置
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	Output string           `mapstructure:"output"` // stderr | stdout
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// HealthConfig 健康检查超时
type HealthConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`       // 单轮检查总超时
	DeviceTimeout time.Duration `mapstructure:"deviceTimeout"` // 设备探活建链超时
}

// InputsConfig 输入源映射覆盖文件
type InputsConfig struct {
	File string `mapstructure:"file"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
}

// NotifyConfig 设备通知转发
type NotifyConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Channel string      `mapstructure:"channel"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Device  DeviceConfig  `mapstructure:"device"`
	Control ControlConfig `mapstructure:"control"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Inputs  InputsConfig  `mapstructure:"inputs"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// flagKeys 命令行参数名 -> 配置键
var flagKeys = map[string]string{
	"host":        "device.host",
	"port":        "device.port",
	"timeout":     "device.connectTimeout",
	"link":        "device.link",
	"serial-path": "device.serial.path",
	"log-level":   "logging.level",
	"http-addr":   "http.addr",
	"inputs-file": "inputs.file",
}

// Load 从 YAML/TOML/JSON 文件、环境变量与命令行参数加载配置。
// 优先级：flags > 环境变量(ESCTL_*) > 文件 > 默认值。
// 若 path 为空，则尝试环境变量 ESCTL_CONFIG；仍为空时查找 ./esctl.yaml 与 ./configs/esctl.yaml，找不到不报错。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv("ESCTL_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("esctl")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// 环境变量覆盖：前缀 ESCTL_，并将点号替换为下划线
	v.SetEnvPrefix("ESCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		// 取反型开关：仅在显式给出时覆盖
		if f := flags.Lookup("no-preamble-fe"); f != nil && f.Changed {
			v.Set("device.preambleFE", false)
		}
		if f := flags.Lookup("no-linger"); f != nil && f.Changed {
			v.Set("device.linger", false)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值、环境变量与命令行
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "esctl")
	v.SetDefault("app.env", "dev")

	v.SetDefault("device.host", "")
	v.SetDefault("device.port", transport.DefaultPort)
	v.SetDefault("device.link", "tcp")
	v.SetDefault("device.connectTimeout", transport.DefaultTimeout)
	v.SetDefault("device.preambleFE", true)
	v.SetDefault("device.linger", true)
	v.SetDefault("device.idleWindow", transport.DefaultIdleWindow)
	v.SetDefault("device.shortRead", transport.DefaultShortRead)
	v.SetDefault("device.keepaliveInterval", transport.DefaultKeepaliveInterval)
	v.SetDefault("device.serial.path", "")
	v.SetDefault("device.serial.baudRate", 9600)
	v.SetDefault("device.serial.dataBits", 8)
	v.SetDefault("device.serial.stopBits", 1)
	v.SetDefault("device.serial.parity", "N")

	v.SetDefault("control.ratePerSec", 4)
	v.SetDefault("control.burst", 2)
	v.SetDefault("control.breakerThreshold", 3)
	v.SetDefault("control.breakerTimeout", "15s")
	v.SetDefault("control.queryHold", "3s")
	v.SetDefault("control.monitorDuration", "10s")
	v.SetDefault("control.maxHold", "5m")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "6m")
	v.SetDefault("http.auth.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.timeout", "2s")
	v.SetDefault("health.deviceTimeout", "1s")

	v.SetDefault("inputs.file", "")

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.channel", "esctl:notifications")
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.password", "")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.dialTimeout", "2s")
}

// Validate 检查链路配置是否足以建立会话
func (c *Config) Validate() error {
	switch strings.ToLower(c.Device.Link) {
	case "", "tcp":
		if c.Device.Host == "" {
			return errors.New("device.host is required (--host)")
		}
		if c.Device.Port <= 0 || c.Device.Port > 65535 {
			return fmt.Errorf("device.port %d out of range", c.Device.Port)
		}
	case "serial":
		if _, err := c.Device.Serial.Normalize(); err != nil {
			return fmt.Errorf("device.serial: %w", err)
		}
	default:
		return fmt.Errorf("device.link %q: expected tcp or serial", c.Device.Link)
	}
	if c.Device.ConnectTimeout <= 0 {
		return fmt.Errorf("device.connectTimeout must be positive")
	}
	return nil
}

// SessionParams 转换为会话参数
func (d DeviceConfig) SessionParams() transport.Params {
	return transport.Params{
		Host:             d.Host,
		Port:             d.Port,
		ConnectTimeout:   d.ConnectTimeout,
		SendWakePreamble: d.PreambleFE,
		LingerAfterSend:  d.Linger,
	}
}

// Dialer 按链路类型构造拨号器
func (d DeviceConfig) Dialer() transport.Dialer {
	if strings.EqualFold(d.Link, "serial") {
		return transport.NewSerialDialer(d.Serial)
	}
	return transport.TCPDialer{Host: d.Host, Port: d.Port}
}

// SessionOptions 链路相关的会话可选项
func (d DeviceConfig) SessionOptions() []transport.Option {
	opts := []transport.Option{transport.WithDialer(d.Dialer())}
	if d.IdleWindow > 0 {
		opts = append(opts, transport.WithIdleWindow(d.IdleWindow))
	}
	if d.ShortRead > 0 {
		opts = append(opts, transport.WithShortRead(d.ShortRead))
	}
	if d.KeepaliveInterval > 0 {
		opts = append(opts, transport.WithKeepaliveInterval(d.KeepaliveInterval))
	}
	return opts
}
