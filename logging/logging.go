// Package logging defines the logger used across the module and adapts
// logrus to it.
package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is a generic logging interface.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Default returns a Logger that writes to the logrus standard logger.
func Default() Logger {
	return NewLogrusLogger(logrus.StandardLogger())
}

// NewLogrusLogger returns a Logger adapter for logrus.FieldLogger.
func NewLogrusLogger(l logrus.FieldLogger) Logger {
	return &logrusLoggerAdapter{l}
}

type logrusLoggerAdapter struct{ l logrus.FieldLogger }

func (l *logrusLoggerAdapter) Debugf(format string, args ...interface{}) { l.l.Debugf(format, args...) }
func (l *logrusLoggerAdapter) Infof(format string, args ...interface{})  { l.l.Infof(format, args...) }
func (l *logrusLoggerAdapter) Warnf(format string, args ...interface{})  { l.l.Warnf(format, args...) }
func (l *logrusLoggerAdapter) Errorf(format string, args ...interface{}) { l.l.Errorf(format, args...) }

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// WithField returns a Logger that adds key=value to every entry when l is
// backed by logrus, and l itself otherwise.
func WithField(l Logger, key string, value interface{}) Logger {
	if a, ok := l.(*logrusLoggerAdapter); ok {
		return &logrusLoggerAdapter{a.l.WithField(key, value)}
	}
	return l
}
