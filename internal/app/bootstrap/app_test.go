package bootstrap

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/esctl/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	dev, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer dev.Close()
	go func() {
		for {
			c, err := dev.Accept()
			if err != nil {
				return
			}
			go func() { _, _ = io.Copy(io.Discard, c); _ = c.Close() }()
		}
	}()

	cfg, err := cfgpkg.Load("", nil)
	require.NoError(t, err)
	cfg.Device.Host = "127.0.0.1"
	cfg.Device.Port = dev.Addr().(*net.TCPAddr).Port
	cfg.HTTP.Addr = freeAddr(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, zap.NewNop()) }()

	url := "http://" + cfg.HTTP.Addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	resp, err := http.Get(url + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(url + "/api/v1/inputs")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_BadInputsFile(t *testing.T) {
	cfg, err := cfgpkg.Load("", nil)
	require.NoError(t, err)
	cfg.Device.Host = "127.0.0.1"
	cfg.Inputs.File = t.TempDir() + "/missing.yaml"

	assert.Error(t, Run(context.Background(), cfg, zap.NewNop()))
}
