package rawi

import (
	"os"

	charm "github.com/charmbracelet/log"
)

// Logger receives structured key/value output from the client and stores.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type charmLogger struct {
	l *charm.Logger
}

// NewSimpleLogger returns a Logger writing human-readable output to stderr at
// debug level.
func NewSimpleLogger() Logger {
	return &charmLogger{l: charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		Level:           charm.DebugLevel,
		Prefix:          "rawi",
	})}
}

func (c *charmLogger) Debug(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c *charmLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Info(msg, keysAndValues...)
}

func (c *charmLogger) Warn(msg string, keysAndValues ...interface{}) {
	c.l.Warn(msg, keysAndValues...)
}

func (c *charmLogger) Error(msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, keysAndValues...)
}
