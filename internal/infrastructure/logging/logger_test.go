package logging

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: "info", want: zapcore.InfoLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "loud", want: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	logger, err := New(Config{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = New(Config{Level: "nope"})
	assert.Error(t, err)
}

func TestEncoding(t *testing.T) {
	assert.Equal(t, "console", encodingFormat(true))
	assert.Equal(t, "json", encodingFormat(false))
	assert.Equal(t, "timestamp", encoderConfig(false).TimeKey)
}

func TestComponent(t *testing.T) {
	logger := NewNop().Component("proxy")
	require.NotNil(t, logger)
	assert.NotPanics(t, func() { logger.Info("ok") })
}

func TestTarget(t *testing.T) {
	u, err := url.Parse("https://user:pw@example.com/a?token=secret&q=go")
	require.NoError(t, err)

	field := Target("target", u)

	assert.Equal(t, "target", field.Key)
	assert.Equal(t, "https://example.com/a?q=go&token=redacted", field.String)
	assert.NotContains(t, field.String, "secret")
	assert.NotContains(t, field.String, "pw")
	assert.Equal(t, "https://user:pw@example.com/a?token=secret&q=go", u.String())
}

func TestTargetNil(t *testing.T) {
	assert.Equal(t, zap.Skip(), Target("target", nil))
}

func TestSampling(t *testing.T) {
	logger, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
