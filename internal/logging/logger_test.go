package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/licensegate/internal/config"
)

func TestNewLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{ServiceName: "licensegate", AuthMode: config.AuthModeAPIKey, LogLevel: "info"})

	logger.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "licensegate", entry["service"])
	assert.Equal(t, "api_key", entry["auth_mode"])
	assert.Equal(t, "hello", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{LogLevel: "warn"})

	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Config{LogLevel: "loud"})

	logger.Debug().Msg("dropped")
	logger.Info().Msg("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
