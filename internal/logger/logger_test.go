package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLoggerFormatsCategoryAndMessage(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Info("booking", "slot held")

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "[BOOKING")
	assert.Contains(t, out, "slot held")
	assert.Contains(t, out, "logger_test.go")
}

func TestMinLevelFiltersLowerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)
	l.SetLevel(WARN)

	l.Debug("APP", "debug line")
	l.Info("APP", "info line")
	l.Warn("APP", "warn line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("Warning"))
	assert.Equal(t, ERROR, ParseLevel("ERROR"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, INFO, ParseLevel("verbose"))
}

func TestSpecializedHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.LogBooking("CREATE", "bk-1", "pending")
	l.LogSecurity("FORBIDDEN", "user u1 tried to cancel bk-2")

	out := buf.String()
	assert.Contains(t, out, "[CREATE] bk-1 - pending")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "[FORBIDDEN] user u1 tried to cancel bk-2")
}
