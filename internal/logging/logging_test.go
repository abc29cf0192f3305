package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want zapcore.Level
	}{
		{"default", Options{}, zapcore.InfoLevel},
		{"warn json", Options{Level: "warn", Format: "json"}, zapcore.WarnLevel},
		{"console debug", Options{Level: "debug", Format: "console"}, zapcore.DebugLevel},
		{"verbose overrides", Options{Level: "error", Verbose: true}, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
