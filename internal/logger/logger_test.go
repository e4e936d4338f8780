package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false // Disable colors for easier testing
	mu.Unlock()

	// Reconfigure with new output
	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		SetLevel("INFO")
		SetFormat("text")
		reconfigure()
	}

	return buf, cleanup
}

// ============================================================================
// Level Filtering Tests
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugLevelShowsAllMessages", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		output := buf.String()
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("InfoLevelFiltersDebug", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.Contains(t, output, "info message")
	})

	t.Run("ErrorLevelShowsOnlyErrors", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.NotContains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})
}

// ============================================================================
// SetLevel / SetFormat Tests
// ============================================================================

func TestSetLevel(t *testing.T) {
	t.Run("ChangesFilteringAtRuntime", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("ERROR")
		Info("should not appear")
		buf.Reset()

		SetLevel("INFO")
		Info("should appear")

		output := buf.String()
		assert.Contains(t, output, "should appear")
		assert.NotContains(t, output, "should not appear")
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("debug")
		Debug("test message")
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("IgnoresInvalidValues", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetLevel("INVALID")
		assert.Equal(t, LevelInfo, GetLevel())

		Debug("debug message")
		Info("info message")
		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.Contains(t, output, "info message")
	})
}

func TestSetFormat(t *testing.T) {
	t.Run("JSONProducesValidJSON", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetLevel("INFO")
		SetFormat("json")

		Info("json message", "media", "test.mp4", "count", 3)

		line := strings.TrimSpace(buf.String())
		require.NotEmpty(t, line)

		var record map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		assert.Equal(t, "json message", record["msg"])
		assert.Equal(t, "test.mp4", record["media"])
		assert.Equal(t, float64(3), record["count"])
	})

	t.Run("IgnoresInvalidFormat", func(t *testing.T) {
		buf, cleanup := captureOutput()
		defer cleanup()

		SetFormat("text")
		SetFormat("xml")

		Info("still text")
		assert.NotContains(t, buf.String(), `"msg"`)
	})
}

// ============================================================================
// Structured Fields Tests
// ============================================================================

func TestStructuredFields(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	Info("loading", KeyMedia, "clip.mp4", KeyWanted, "{0~2}")

	output := buf.String()
	assert.Contains(t, output, "clip.mp4")
	assert.Contains(t, output, "{0~2}")
}

func TestWith(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("INFO")
	l := With(KeyMedia, "bound.mp4")
	l.Info("bound message")

	output := buf.String()
	assert.Contains(t, output, "bound message")
	assert.Contains(t, output, "bound.mp4")
}

// ============================================================================
// Init Tests
// ============================================================================

func TestInitWithWriter(t *testing.T) {
	mu.Lock()
	originalOutput := output
	mu.Unlock()

	buf := new(bytes.Buffer)
	InitWithWriter(buf, "DEBUG", "text")
	defer InitWithWriter(originalOutput, "INFO", "text")

	Debug("writer message")
	assert.Contains(t, buf.String(), "writer message")
	assert.Equal(t, LevelDebug, GetLevel())
}

func TestDurationMs(t *testing.T) {
	start := time.Now().Add(-50 * time.Millisecond)
	ms := DurationMs(start)
	assert.GreaterOrEqual(t, ms, 50.0)
	assert.Less(t, ms, 5000.0)
}
