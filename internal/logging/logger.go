package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Logger provides leveled logging with redaction support.
// Output always goes to stderr so reports on stdout stay machine-readable.
type Logger struct {
	debug bool
	out   io.Writer

	info   *color.Color
	warn   *color.Color
	fail   *color.Color
	debugC *color.Color
}

// New creates a new logger instance
func New(debug, noColor bool) *Logger {
	l := &Logger{
		debug:  debug,
		out:    os.Stderr,
		info:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed),
		debugC: color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{l.info, l.warn, l.fail, l.debugC} {
			c.DisableColor()
		}
	}
	return l
}

// SetOutput redirects log output, used by tests
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s %s\n", l.info.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s %s\n", l.warn.Sprint("⚠"), fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintf(l.out, "%s %s\n", l.fail.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	fmt.Fprintf(l.out, "%s %s\n", l.debugC.Sprint("[DEBUG]"), fmt.Sprintf(format, args...))
}

// Secret represents a value that must never appear in log output
type Secret string

// String implements the Stringer interface, always returning the redaction marker
func (s Secret) String() string {
	return "***REDACTED***"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "***REDACTED***"
}
