package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dep2p/go-circuit/config"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max message size", func(c *Config) { c.MaxMessageSize = 0 }},
		{"buffer size", func(c *Config) { c.BufferSize = -1 }},
		{"max bandwidth", func(c *Config) { c.MaxBandwidth = -1 }},
		{"stream timeout", func(c *Config) { c.StreamTimeout = -time.Second }},
		{"accept backlog", func(c *Config) { c.AcceptBacklog = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	uc := config.DefaultConfig()
	uc.Relay.HopEnabled = true
	uc.Relay.MaxBandwidth = 1 << 20
	uc.Relay.StreamTimeout = 5 * time.Second

	cfg := ConfigFromUnified(uc)
	assert.True(t, cfg.HopEnabled)
	assert.False(t, cfg.HopActive)
	assert.EqualValues(t, 1<<20, cfg.MaxBandwidth)
	assert.Equal(t, 5*time.Second, cfg.StreamTimeout)
	assert.Equal(t, uc.Relay.MaxMessageSize, cfg.MaxMessageSize)
	assert.NoError(t, cfg.Validate())
}
