package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)

	assert.Equal(t, 9091, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "teachd", cfg.Observability.ServiceName)
	assert.Equal(t, 30*time.Second, cfg.Workflow.CheckpointTimeout.Duration())
	assert.Equal(t, 3, cfg.Workflow.MaxRegenerations)
	assert.Equal(t, 20, cfg.Workflow.MinIntentConfidence)
	assert.Equal(t, 7*24*time.Hour, cfg.Memory.BaseMaxAge.Duration())
	assert.Equal(t, time.Hour, cfg.Memory.SweepInterval.Duration())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "server port",
		},
		{
			name:    "negative regenerations",
			mutate:  func(c *Config) { c.Workflow.MaxRegenerations = -1 },
			wantErr: "max regenerations",
		},
		{
			name:    "confidence out of range",
			mutate:  func(c *Config) { c.Workflow.MinIntentConfidence = 99 },
			wantErr: "min intent confidence",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "logging level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
		{
			name:    "bad protocol",
			mutate:  func(c *Config) { c.Observability.Protocol = "udp" },
			wantErr: "protocol",
		},
		{
			name:    "notify without sender",
			mutate:  func(c *Config) { c.Notify.Enabled = true },
			wantErr: "sender email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("45s")))
	assert.Equal(t, 45*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())
	assert.True(t, s.IsSet())

	empty := Secret("")
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}
