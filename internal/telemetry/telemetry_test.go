package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/teachd/internal/config"
)

func TestNew_DisabledTelemetry(t *testing.T) {
	cfg := &config.ObservabilityConfig{Enabled: false}

	tel, err := New(context.Background(), cfg, "0.1.0")
	require.NoError(t, err)
	require.NotNil(t, tel)

	// No-op providers are still usable.
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))

	assert.False(t, tel.IsEnabled())
	assert.False(t, tel.Degraded())
}

func TestNew_NilConfig(t *testing.T) {
	tel, err := New(context.Background(), nil, "0.1.0")
	require.Error(t, err)
	assert.Nil(t, tel)
}

func TestNew_MissingEndpoint(t *testing.T) {
	cfg := &config.ObservabilityConfig{
		Enabled:     true,
		ServiceName: "teachd",
	}

	tel, err := New(context.Background(), cfg, "0.1.0")
	require.Error(t, err)
	assert.Nil(t, tel)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		_ = tel.Tracer("test")
		_ = tel.Meter("test")
		_ = tel.IsEnabled()
		_ = tel.Degraded()
		_ = tel.Shutdown(context.Background())
		_ = tel.ForceFlush(context.Background())
	})

	assert.False(t, tel.IsEnabled())
	assert.True(t, tel.Degraded())
}

func TestTelemetry_Shutdown(t *testing.T) {
	cfg := &config.ObservabilityConfig{Enabled: false}

	tel, err := New(context.Background(), cfg, "0.1.0")
	require.NoError(t, err)

	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.False(t, tel.IsEnabled())

	// Shutdown is safe to call again.
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:4318", "localhost:4318"},
		{"https://otel.example.com:4318", "otel.example.com:4318"},
		{"localhost:4317", "localhost:4317"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, stripScheme(tt.in))
	}
}
