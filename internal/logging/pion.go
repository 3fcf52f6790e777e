package logging

import (
	"fmt"

	"github.com/pion/logging"
	"go.uber.org/zap"
)

// PionFactory adapts zap to pion's LoggerFactory so ICE/DTLS/SCTP logs end up
// in the same stream as ours.
type PionFactory struct {
	Logger *zap.Logger
}

// NewPionFactory returns a factory writing below the given logger, or below
// the global logger when l is nil.
func NewPionFactory(l *zap.Logger) *PionFactory {
	if l == nil {
		l = zap.L()
	}
	return &PionFactory{Logger: l.Named("pion")}
}

func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{s: f.Logger.Named(scope).Sugar()}
}

type pionLogger struct {
	s *zap.SugaredLogger
}

// pion's trace level is far too chatty for anything but debugging pion itself.
func (l *pionLogger) Trace(msg string)                          {}
func (l *pionLogger) Tracef(format string, args ...interface{}) {}

func (l *pionLogger) Debug(msg string) { l.s.Debug(msg) }
func (l *pionLogger) Debugf(format string, args ...interface{}) {
	l.s.Debug(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Info(msg string) { l.s.Info(msg) }
func (l *pionLogger) Infof(format string, args ...interface{}) {
	l.s.Info(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Warn(msg string) { l.s.Warn(msg) }
func (l *pionLogger) Warnf(format string, args ...interface{}) {
	l.s.Warn(fmt.Sprintf(format, args...))
}
func (l *pionLogger) Error(msg string) { l.s.Error(msg) }
func (l *pionLogger) Errorf(format string, args ...interface{}) {
	l.s.Error(fmt.Sprintf(format, args...))
}
