package logger

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)

	Info("Transport: sent %d bytes", 42)
	Warn("Config: %s missing", ".env")
	Error("Form: %v", "boom")

	out := buf.String()
	assert.Contains(t, out, "[INFO] Transport: sent 42 bytes")
	assert.Contains(t, out, "[WARN] Config: .env missing")
	assert.Contains(t, out, "[ERROR] Form: boom")
}

func TestDebugIsGated(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	defer SetDebug(false)

	Debug("hidden")
	assert.Empty(t, buf.String())

	SetDebug(true)
	Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}
