// Package logging provides the CLI's logging facility: a nil-safe *Logger
// with hierarchical prefixes, so callers never need to guard a logger field
// before using it. A nil *Logger still works, it just logs nothing.
package logging

import (
	"fmt"
	"log"

	"github.com/fatih/color"
)

// DebugEnabled controls whether Debugf actually emits output. It has no
// effect on pkg/rsync, which never logs.
var DebugEnabled = false

// Logger is the main logger type. A nil *Logger is valid and logs nothing;
// it's safe for concurrent use.
type Logger struct {
	prefix string
}

// RootLogger is the root logger from which all other loggers derive.
var RootLogger = &Logger{}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{prefix: prefix}
}

func (l *Logger) output(calldepth int, line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Debugf logs information with semantics equivalent to fmt.Printf, but only
// if DebugEnabled is true.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil && DebugEnabled {
		l.output(3, fmt.Sprintf(format, v...))
	}
}

// Warn logs error information with a warning prefix and yellow color.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(3, color.YellowString("Warning: %v", err))
	}
}

// Error logs error information with an error prefix and red color.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(3, color.RedString("Error: %v", err))
	}
}
