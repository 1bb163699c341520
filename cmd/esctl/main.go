package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/app"
	"github.com/taoyao-code/esctl/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/logging"
	"github.com/taoyao-code/esctl/internal/transport"
)

const (
	exitOK    = 0
	exitSend  = 1
	exitUsage = 2
)

const usageText = `Usage: esctl [global flags] <command> [args]

Commands:
  power on|off                    power the receiver on or off
  volume up|down                  step master volume
  raw <hex>                       send an arbitrary payload, e.g. 'A0 42 00 21'
  input --name <n> | --code <hex> select an input
  <input-name>                    select an input by name, e.g. hdmi1
  query power|raw [--hold s] [--payload hex]
                                  send with linger, then hold the link and listen
  monitor [--seconds s] [--no-fe] hold the link and print everything received
  inputs                          list known input names
  serve                           run the HTTP gateway

Global flags:
`

//go:generate swag init -d ../../ -g cmd/esctl/main.go -o ../../docs --parseInternal

// @title esctl gateway API
// @version 1.0
// @description Sony ES 系列接收机 IP 控制网关
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// globalFlags 全局参数；名称与配置键的绑定见 config.Load
func globalFlags(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("esctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	fs.String("config", "", "config file (yaml/toml/json)")
	fs.String("host", "", "receiver IP or hostname")
	fs.Int("port", transport.DefaultPort, "receiver TCP control port")
	fs.Duration("timeout", transport.DefaultTimeout, "connect/IO timeout")
	fs.Bool("no-preamble-fe", false, "do not send the 0xFE wake byte before a frame")
	fs.Bool("no-linger", false, "single short read instead of lingering for a reply burst")
	fs.String("link", "tcp", "link type: tcp or serial")
	fs.String("serial-path", "", "serial device path when --link=serial")
	fs.String("log-level", "", "log level (debug|info|warn|error)")
	fs.String("http-addr", "", "listen address for serve")
	fs.String("inputs-file", "", "YAML file merged into the input table")
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}
	return fs
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := globalFlags(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return exitUsage
	}

	configPath, _ := fs.GetString("config")
	cfg, err := cfgpkg.Load(configPath, fs)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	// 单次命令默认只输出告警，结果走 stdout
	if rest[0] != "serve" && !fs.Changed("log-level") {
		cfg.Logging.Level = "warn"
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	table, err := app.LoadInputs(cfg.Inputs, logger)
	if err != nil {
		fmt.Fprintf(stderr, "inputs: %v\n", err)
		return exitUsage
	}

	c := &cli{stdout: stdout, stderr: stderr, cfg: cfg, table: table, logger: logger}
	switch rest[0] {
	case "inputs":
		return c.listInputs()
	case "help":
		fs.Usage()
		return exitOK
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}
	if rest[0] == "serve" {
		return serve(cfg, logger, stderr)
	}
	return c.dispatch(rest[0], rest[1:])
}

func serve(cfg *cfgpkg.Config, logger *zap.Logger, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := bootstrap.Run(ctx, cfg, logger); err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitSend
	}
	return exitOK
}
