// Package logging defines the log sink the engine writes to and a klog-backed
// implementation with a runtime-adjustable level.
package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	"k8s.io/klog/v2"
)

// Level orders log severities from most to least verbose
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// String returns the canonical name of the level
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelOff:
		return "off"
	default:
		return fmt.Sprintf("level(%d)", int32(l))
	}
}

// ParseLevel converts a level name to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off":
		return LevelOff, nil
	default:
		return LevelOff, fmt.Errorf("invalid log level: %s. Valid levels are: trace, debug, info, warn, error, off", s)
	}
}

// Logger is the sink engine components report to
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Nop returns a Logger that discards everything
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns l, or a discarding Logger when l is nil
func OrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// KlogLogger forwards to klog, dropping messages below its level
type KlogLogger struct {
	level atomic.Int32
}

// NewKlog creates a klog-backed Logger at the given level
func NewKlog(level Level) *KlogLogger {
	l := &KlogLogger{}
	l.SetLevel(level)
	return l
}

// SetLevel changes the minimum level that is emitted
func (l *KlogLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current minimum level
func (l *KlogLogger) Level() Level {
	return Level(l.level.Load())
}

// Enabled reports whether messages at level are emitted
func (l *KlogLogger) Enabled(level Level) bool {
	return level >= l.Level() && l.Level() != LevelOff
}

func (l *KlogLogger) Debugf(format string, args ...interface{}) {
	if l.Enabled(LevelDebug) {
		klog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func (l *KlogLogger) Infof(format string, args ...interface{}) {
	if l.Enabled(LevelInfo) {
		klog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func (l *KlogLogger) Warnf(format string, args ...interface{}) {
	if l.Enabled(LevelWarn) {
		klog.WarningDepth(1, fmt.Sprintf(format, args...))
	}
}

func (l *KlogLogger) Errorf(format string, args ...interface{}) {
	if l.Enabled(LevelError) {
		klog.ErrorDepth(1, fmt.Sprintf(format, args...))
	}
}

// Flush flushes buffered klog output
func (l *KlogLogger) Flush() {
	klog.Flush()
}
