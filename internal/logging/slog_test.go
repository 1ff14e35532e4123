package logging

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsWriterWhenNil(t *testing.T) {
	logger := New(slog.LevelInfo, nil)
	require.NotNil(t, logger)
}

func TestHandlerColorsInfoLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelInfo, buf)

	logger.Info("connected", "client_id", "uniqueId")
	output := buf.String()

	assert.Contains(t, output, "INF")
	assert.Contains(t, output, "connected")
	assert.Contains(t, output, "client_id=uniqueId")
	assert.Contains(t, output, time.Now().Format("2006-01-02"))
}

func TestHandlerRespectsMinLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelWarn, buf)

	logger.Info("suppressed")
	logger.Warn("keep-alive timeout approaching")

	output := buf.String()
	assert.NotContains(t, output, "suppressed")
	assert.Contains(t, output, "WRN")
	assert.Contains(t, output, "keep-alive timeout approaching")
}

func TestWithAttrsAppendsToEveryRecord(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelInfo, buf).With("conn", "1")

	logger.Info("ping sent")
	assert.Contains(t, buf.String(), "conn=1")
}
