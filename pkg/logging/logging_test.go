package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level string
		want  zap.AtomicLevel
	}{
		{"", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"DEBUG", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"ERROR", zap.NewAtomicLevelAt(zap.ErrorLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(tt.level, true)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want.Level()))
			if tt.want.Level() > zap.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.want.Level()-1))
			}
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.Error(t, err)

	assert.NotNil(t, Must("loud", false))
}
