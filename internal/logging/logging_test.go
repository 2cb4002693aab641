// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bes-catalog/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"chatty":  zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter(types.LoggingConfig{Level: "info", Format: "json"}, &buf), "extract")

	log.Debug().Msg("hidden")
	log.Info().Str("paper_id", "p1").Msg("extracted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "extracted", entry["message"])
	assert.Equal(t, "extract", entry["component"])
	assert.Equal(t, "p1", entry["paper_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(types.LoggingConfig{Format: "console"}, &buf)
	log.Warn().Msg("rate limited")
	assert.Contains(t, buf.String(), "rate limited")
	assert.NotContains(t, buf.String(), `"message"`)
}
