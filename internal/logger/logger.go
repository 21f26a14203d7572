// Package logger builds the process-wide structured logger.
package logger

import (
	"io"

	"github.com/charmbracelet/log"
)

// New creates a logger writing to w. Verbose mode lowers the level to debug.
func New(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// For returns a child logger tagged with a component name.
func For(l *log.Logger, component string) *log.Logger {
	return l.With("component", component)
}
