package main

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/esctl/internal/protocol/esframe"
)

// startDevice 建链即上报一帧 A8 82 状态，然后读到对端关闭
func startDevice(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				_, _ = c.Write(esframe.MustEncode([]byte{0xA8, 0x82, 0x00, 0x01}))
				_, _ = io.Copy(io.Discard, c)
			}()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })
	return strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
}

func runCLI(args ...string) (code int, stdout, stderr string) {
	var out, errb bytes.Buffer
	code = run(args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"missing host", []string{"power", "on"}},
		{"bad power arg", []string{"--host", "127.0.0.1", "power", "standby"}},
		{"bad volume arg", []string{"--host", "127.0.0.1", "volume"}},
		{"bad hex", []string{"--host", "127.0.0.1", "raw", "A0 ZZ"}},
		{"oversized payload", []string{"--host", "127.0.0.1", "raw", fmt.Sprintf("%0512X", 0)}},
		{"unknown input", []string{"--host", "127.0.0.1", "input", "--name", "laserdisc"}},
		{"input both", []string{"--host", "127.0.0.1", "input", "--name", "hdmi1", "--code", "21"}},
		{"query raw without payload", []string{"--host", "127.0.0.1", "query", "raw"}},
		{"query bogus", []string{"--host", "127.0.0.1", "query", "volume"}},
		{"unknown command", []string{"--host", "127.0.0.1", "dance"}},
		{"unknown flag", []string{"--bogus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(tt.args...)
			assert.Equal(t, exitUsage, code)
		})
	}
}

func TestRun_PowerOn(t *testing.T) {
	port := startDevice(t)
	code, stdout, stderr := runCLI("--host", "127.0.0.1", "--port", port, "--timeout", "500ms", "power", "on")
	require.Equal(t, exitOK, code, stderr)

	assert.Contains(t, stdout, "Send:   02 04 A0 60 00 01 FB  (payload A0 60 00 01)\n")
	assert.Contains(t, stdout, "Raw (7): 02 04 A8 82 00 01 D1")
	assert.Contains(t, stdout, "Frame[0]: ")
	assert.Contains(t, stdout, "(OK) | A8 82 status fields: 00 01 flags=0x01")
}

func TestRun_OneWordInput(t *testing.T) {
	port := startDevice(t)
	code, stdout, stderr := runCLI("--host", "127.0.0.1", "--port", port, "--timeout", "500ms", "--no-linger", "HDMI1")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Send:   02 04 A0 42 00 21 F9  (payload A0 42 00 21)")
}

func TestRun_InputByCode(t *testing.T) {
	port := startDevice(t)
	code, stdout, stderr := runCLI("--host", "127.0.0.1", "--port", port, "--timeout", "500ms", "input", "--code", "0x19")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "(payload A0 42 00 19)")
}

func TestRun_ConnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	code, stdout, stderr := runCLI("--host", "127.0.0.1", "--port", port, "--timeout", "300ms", "volume", "down")
	assert.Equal(t, exitSend, code)
	assert.Contains(t, stdout, "Send:   02 03 A0 56 00 07")
	assert.Contains(t, stderr, "Send error: ")
}

func TestRun_QueryAndMonitor(t *testing.T) {
	port := startDevice(t)

	code, stdout, stderr := runCLI("--host", "127.0.0.1", "--port", port, "--timeout", "500ms", "query", "power", "--hold", "0.2")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Querying power (A1 00) and listening for A8xx...")
	assert.Contains(t, stdout, "Send:   02 02 A1 00 5D  (payload A1 00)")
	assert.Equal(t, 2, bytes.Count([]byte(stdout), []byte("A8 82 status fields")), "回复与保持阶段各一帧")

	code, stdout, stderr = runCLI("--host", "127.0.0.1", "--port", port, "monitor", "--seconds", "0.2", "--no-fe")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Monitoring 127.0.0.1:"+port+" for 0.2s... (FE keepalive: off)")
	assert.Contains(t, stdout, "Frame[0]: ")
}

func TestRun_Inputs(t *testing.T) {
	code, stdout, _ := runCLI("inputs")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "hdmi1        0x21\n")
}
