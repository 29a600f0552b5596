package logging

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(false, true)
	l.SetOutput(&buf)

	l.Info("compiled %s", "dev")
	l.Warn("legacy key %s", "DB_URL")
	l.Error("missing %s", "API_KEY")
	l.Debug("should not appear")

	out := buf.String()
	assert.Contains(t, out, "✓ compiled dev")
	assert.Contains(t, out, "⚠ legacy key DB_URL")
	assert.Contains(t, out, "✗ missing API_KEY")
	assert.NotContains(t, out, "should not appear")
}

func TestLoggerDebugEnabled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(true, true)
	l.SetOutput(&buf)

	l.Debug("resolver cache hit for %s", "pid-1")
	assert.Contains(t, buf.String(), "[DEBUG] resolver cache hit for pid-1")
}

func TestSecretNeverPrintsValue(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2")

	assert.Equal(t, "***REDACTED***", s.String())
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%v", s))
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%s", s))
	assert.Equal(t, "***REDACTED***", fmt.Sprintf("%#v", s))
	assert.NotContains(t, fmt.Sprintf("value=%v", s), "hunter2")
}
