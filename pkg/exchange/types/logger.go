package types

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract used by every component in this module.
// Callers supply their own implementation to integrate with whatever
// logging stack the host process already runs; DefaultLogger is used
// when none is provided.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug enables or disables debug-level output and returns
	// the resulting state.
	ToggleDebug(value bool) bool
}

// DefaultLogger is the logrus-backed implementation used when a host
// does not supply its own Logger.
type DefaultLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing to stderr with
// debug output disabled.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{entry: l}
}

func (l *DefaultLogger) Info(v ...interface{})                 { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                 { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(format, v...)
}
func (l *DefaultLogger) Debug(v ...interface{})                 { l.entry.Debug(v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *DefaultLogger) Fatal(v ...interface{})                 { l.entry.Fatal(v...) }
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) { l.entry.Fatalf(format, v...) }

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return value
}
