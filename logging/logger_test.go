package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/career-engine/logging"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name   string
		opts   logging.Options
		lowest zapcore.Level
	}{
		{"default", logging.Options{}, zapcore.InfoLevel},
		{"debug, any case", logging.Options{Level: "DEBUG"}, zapcore.DebugLevel},
		{"json warn", logging.Options{JSON: true, Level: "warn"}, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := logging.New(tt.opts)
			require.NoError(t, err)

			core := logger.Core()
			assert.True(t, core.Enabled(tt.lowest))
			if tt.lowest > zapcore.DebugLevel {
				assert.False(t, core.Enabled(tt.lowest-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))
}
