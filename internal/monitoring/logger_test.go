package monitoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNew_LevelParsing(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel}, // unknown levels fall back to info
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(LoggerConfig{Level: tt.level})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.log")
	logger := New(LoggerConfig{Level: "info", Format: "json", Output: path})

	logger.Info().Str("pool", "blue").Msg("pool resolved")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Equal(t, "pool resolved", gjson.Get(line, "message").String())
	assert.Equal(t, "blue", gjson.Get(line, "pool").String())
	assert.Equal(t, "info", gjson.Get(line, "level").String())
}

func TestGlobal_SetsProcessLogger(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	Global(LoggerConfig{Level: "error"})
	assert.Equal(t, zerolog.ErrorLevel, log.Logger.GetLevel())
}
