package util

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", false)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger = NewLogger("invalid", false)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())

	logger = NewLogger("", false)
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestComponentTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "info", false), "screener")

	logger.Info().Msg("hello")

	require.NotZero(t, buf.Len())
	assert.Contains(t, buf.String(), `"component":"screener"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestDebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", false)

	logger.Debug().Msg("hidden")

	assert.Zero(t, buf.Len())
}
