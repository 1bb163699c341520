package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/esctl/internal/app"
	cfgpkg "github.com/taoyao-code/esctl/internal/config"
	"github.com/taoyao-code/esctl/internal/control"
	"github.com/taoyao-code/esctl/internal/inputs"
	"github.com/taoyao-code/esctl/internal/notify"
	"github.com/taoyao-code/esctl/internal/protocol/escmd"
	"github.com/taoyao-code/esctl/internal/protocol/esframe"
	"github.com/taoyao-code/esctl/internal/render"
)

type cli struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *cfgpkg.Config
	table  *inputs.Table
	logger *zap.Logger
	svc    *control.Service
}

func (c *cli) usage(format string, a ...interface{}) int {
	fmt.Fprintf(c.stderr, format+"\n", a...)
	return exitUsage
}

func (c *cli) service() *control.Service {
	if c.svc != nil {
		return c.svc
	}
	pub, err := app.NewPublisher(c.cfg.Notify, c.logger)
	if err != nil {
		c.logger.Warn("notify unavailable, continuing without it", zap.Error(err))
		pub = notify.NopPublisher{}
	}
	c.svc = app.NewControlService(c.cfg, c.table, nil, pub, c.logger)
	return c.svc
}

func (c *cli) dispatch(name string, args []string) int {
	switch name {
	case "power":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return c.usage("usage: esctl power on|off")
		}
		return c.send(control.OpPower, escmd.Power(args[0] == "on"))
	case "volume":
		if len(args) != 1 || (args[0] != "up" && args[0] != "down") {
			return c.usage("usage: esctl volume up|down")
		}
		return c.send(control.OpVolume, escmd.Volume(args[0] == "up"))
	case "raw":
		if len(args) == 0 {
			return c.usage("usage: esctl raw <hex payload>")
		}
		payload, err := escmd.ParseHex(strings.Join(args, " "))
		if err != nil {
			return c.usage("raw: %v", err)
		}
		return c.send(control.OpRaw, payload)
	case "input":
		return c.input(args)
	case "query":
		return c.query(args)
	case "monitor":
		return c.monitor(args)
	}
	if c.table.Has(name) {
		code, _ := c.table.Resolve(name)
		return c.send(control.OpInput, escmd.Input(code))
	}
	return c.usage("unknown command %q (see esctl --help)", name)
}

func subFlags(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (c *cli) input(args []string) int {
	fs := subFlags("input", c.stderr)
	name := fs.String("name", "", "input name, see 'esctl inputs'")
	code := fs.String("code", "", "input code in hex, e.g. 21 or 0x21")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if (*name == "") == (*code == "") {
		return c.usage("usage: esctl input --name <name> | --code <hex>")
	}
	var (
		v   byte
		err error
	)
	if *name != "" {
		v, err = c.table.Resolve(*name)
	} else {
		v, err = c.table.ResolveCode(*code)
	}
	if err != nil {
		return c.usage("input: %v", err)
	}
	return c.send(control.OpInput, escmd.Input(v))
}

func (c *cli) query(args []string) int {
	fs := subFlags("query", c.stderr)
	hold := fs.Float64("hold", c.cfg.Control.QueryHold.Seconds(), "seconds to keep the link open and listen")
	payloadHex := fs.String("payload", "", "hex payload for 'query raw', e.g. 'A1 00'")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		return c.usage("usage: esctl query power|raw [--hold s] [--payload hex]")
	}

	var payload []byte
	switch fs.Arg(0) {
	case "power":
		payload = escmd.QueryPower()
		fmt.Fprintln(c.stdout, "Querying power (A1 00) and listening for A8xx...")
	case "raw":
		if *payloadHex == "" {
			return c.usage("Provide --payload for 'query raw' (e.g. --payload 'A1 00')")
		}
		p, err := escmd.ParseHex(*payloadHex)
		if err != nil {
			return c.usage("query: %v", err)
		}
		payload = p
	default:
		return c.usage("usage: esctl query power|raw [--hold s] [--payload hex]")
	}
	if code := c.printSent(payload); code != exitOK {
		return code
	}

	out, err := c.service().Query(context.Background(), payload, seconds(*hold))
	if err != nil {
		return c.sendError(err)
	}
	c.printReply(out)
	c.printCapture(out)
	return exitOK
}

func (c *cli) monitor(args []string) int {
	fs := subFlags("monitor", c.stderr)
	secs := fs.Float64("seconds", c.cfg.Control.MonitorDuration.Seconds(), "seconds to listen")
	noFE := fs.Bool("no-fe", false, "disable periodic FE keepalive while monitoring")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 0 {
		return c.usage("usage: esctl monitor [--seconds s] [--no-fe]")
	}

	keepalive := "on"
	if *noFE {
		keepalive = "off"
	}
	fmt.Fprintf(c.stdout, "Monitoring %s for %.1fs... (FE keepalive: %s)\n",
		c.service().Addr(), *secs, keepalive)

	out, err := c.service().Monitor(context.Background(), seconds(*secs), !*noFE)
	if err != nil {
		return c.sendError(err)
	}
	c.printCapture(out)
	return exitOK
}

func (c *cli) send(op string, payload []byte) int {
	if code := c.printSent(payload); code != exitOK {
		return code
	}
	out, err := c.service().Run(context.Background(), op, payload, nil)
	if err != nil {
		return c.sendError(err)
	}
	c.printReply(out)
	return exitOK
}

func (c *cli) printSent(payload []byte) int {
	frame, err := esframe.Encode(payload)
	if err != nil {
		return c.usage("%v", err)
	}
	_ = render.Sent(c.stdout, frame, payload)
	return exitOK
}

func (c *cli) sendError(err error) int {
	fmt.Fprintf(c.stderr, "Send error: %v\n", err)
	if errors.Is(err, esframe.ErrInvalidPayloadSize) {
		return exitUsage
	}
	return exitSend
}

func (c *cli) printReply(out *control.Outcome) {
	if out.Reply == nil {
		return
	}
	_ = render.Text(c.stdout, out.Reply.Raw, c.service().Annotator())
	if out.Reply.ReadErr != nil {
		fmt.Fprintf(c.stderr, "Read error: %v\n", out.Reply.ReadErr)
	}
}

func (c *cli) printCapture(out *control.Outcome) {
	if out.Capture == nil {
		return
	}
	_ = render.Text(c.stdout, out.Capture.Raw, c.service().Annotator())
	if out.Capture.KeepaliveFailures > 0 {
		fmt.Fprintf(c.stderr, "Keepalive failures: %d (last: %v)\n",
			out.Capture.KeepaliveFailures, out.Capture.LastKeepaliveErr)
	}
	if out.Capture.ReadErr != nil {
		fmt.Fprintf(c.stderr, "Read error: %v\n", out.Capture.ReadErr)
	}
}

func (c *cli) listInputs() int {
	for _, n := range c.table.Names() {
		code, _ := c.table.Resolve(n)
		fmt.Fprintf(c.stdout, "%-12s 0x%02X\n", n, code)
	}
	return exitOK
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
