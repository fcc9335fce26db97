package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Relay.HopEnabled)
	assert.Equal(t, 4096, cfg.Relay.MaxMessageSize)

	addrs, err := cfg.ListenMultiaddrs()
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "/ip4/0.0.0.0/tcp/4001", addrs[0].String())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"非法监听地址", func(c *Config) { c.Listen = []string{"not-an-addr"} }},
		{"非法已知节点", func(c *Config) { c.KnownPeers = []string{"/ip4/1.2.3"} }},
		{"帧长过小", func(c *Config) { c.Relay.MaxMessageSize = 8 }},
		{"缓冲区过小", func(c *Config) { c.Relay.BufferSize = 10 }},
		{"负带宽", func(c *Config) { c.Relay.MaxBandwidth = -1 }},
		{"backlog 为 0", func(c *Config) { c.Relay.AcceptBacklog = 0 }},
		{"拨号超时为 0", func(c *Config) { c.Host.DialTimeout = 0 }},
		{"窗口过小", func(c *Config) { c.Host.MaxStreamWindowSize = 1024 }},
		{"缺少密钥文件", func(c *Config) { c.Identity = IdentityConfig{} }},
		{"未知日志格式", func(c *Config) { c.Log.Format = "xml" }},
		{"未知日志级别", func(c *Config) { c.Log.Level = "relay=loud" }},
		{"指标地址非法", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "9464" }},
		{"指标路径非法", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Path = "metrics" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "circuit.yaml", `
listen:
  - /ip4/127.0.0.1/tcp/4101
relay:
  hop_enabled: true
  stream_timeout: 5s
  max_bandwidth: 1048576
log:
  level: relay=debug,info
  format: json
metrics:
  enabled: true
  addr: 127.0.0.1:9999
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4101"}, cfg.Listen)
	assert.True(t, cfg.Relay.HopEnabled)
	assert.Equal(t, 5*time.Second, cfg.Relay.StreamTimeout)
	assert.Equal(t, int64(1<<20), cfg.Relay.MaxBandwidth)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.Addr)

	// 文件未出现的字段保留默认值
	assert.Equal(t, 4096, cfg.Relay.MaxMessageSize)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, DefaultHostConfig(), cfg.Host)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "circuit.json", `{"relay": {"hop_enabled": true, "accept_backlog": 4}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Relay.HopEnabled)
	assert.Equal(t, 4, cfg.Relay.AcceptBacklog)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "relay:\n  max_message_size: 1\n")
	_, err = Load(bad)
	assert.Error(t, err, "加载后应执行 Validate")
}
