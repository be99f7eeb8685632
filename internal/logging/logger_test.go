package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger(nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "format")
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "defaults", wantLevel: zapcore.InfoLevel},
		{name: "debug console", level: "debug", format: "console", wantLevel: zapcore.DebugLevel},
		{name: "warn", level: "warn", wantLevel: zapcore.WarnLevel},
		{name: "bad level", level: "verbose", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLevel, cfg.Level)
		})
	}
}

func TestContextFields_SessionAndRun(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithStageID(ctx, "approval")

	fields := ContextFields(ctx)

	keys := make(map[string]string)
	for _, f := range fields {
		keys[f.Key] = f.String
	}
	assert.Equal(t, "sess-1", keys["session.id"])
	assert.Equal(t, "run-1", keys["run.id"])
	assert.Equal(t, "approval", keys["stage.id"])
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestTestLogger_Observes(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithSessionID(context.Background(), "sess-2")

	tl.Info(ctx, "stage started", zap.String("stage", "intake"))

	tl.AssertLogged(t, zapcore.InfoLevel, "stage started")
	entries := tl.FilterMessage("stage started").All()
	require.Len(t, entries, 1)
}
