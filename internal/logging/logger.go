package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger provides structured logging with redaction support
type Logger struct {
	entry *logrus.Entry
	debug bool
}

// New creates a new logger writing to stderr
func New(debug, noColor bool) *Logger {
	return newLogger(os.Stderr, debug, noColor)
}

// NewWithWriter creates a logger that writes plain text to w.
// Used by tests and by commands that redirect diagnostics.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	return newLogger(w, debug, true)
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return newLogger(io.Discard, false, true)
}

func newLogger(w io.Writer, debug, noColor bool) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetFormatter(&logrus.TextFormatter{
		DisableColors:    noColor,
		ForceColors:      !noColor,
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	if debug {
		base.SetLevel(logrus.DebugLevel)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return &Logger{entry: logrus.NewEntry(base), debug: debug}
}

// WithField returns a child logger carrying an extra structured field.
// Values are formatted with %v, so Secret values stay redacted.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, fmt.Sprintf("%v", value)), debug: l.debug}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.entry.Debugf(format, args...)
}

// IsDebug reports whether debug output is enabled
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}
