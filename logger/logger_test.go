package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForSource_AddsField(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	defer os.Unsetenv("LOG_LEVEL")

	var buf bytes.Buffer
	InitWithWriter(&buf)
	buf.Reset()

	ForSource("g2").Info().Int("page", 2).Msg("page extracted")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "g2", line["source"])
	assert.Equal(t, float64(2), line["page"])
	assert.Equal(t, "page extracted", line["message"])
}

func TestLogError_IncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)
	buf.Reset()

	LogError("api", errors.New("boom"), "request %s failed", "abc")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "api", line["component"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "request abc failed", line["message"])
}

func TestGetLogLevel(t *testing.T) {
	os.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, "warn", getLogLevel().String())

	os.Setenv("LOG_LEVEL", "not-a-level")
	assert.Equal(t, "info", getLogLevel().String())
	os.Unsetenv("LOG_LEVEL")

	os.Setenv("REVIEWCRAWLER_ENVIRONMENT", "production")
	assert.Equal(t, "info", getLogLevel().String())
	os.Unsetenv("REVIEWCRAWLER_ENVIRONMENT")
	assert.Equal(t, "debug", getLogLevel().String())
}
