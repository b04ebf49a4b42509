package core

import "go.uber.org/zap"

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l; a nil logger yields zap.NewNop.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

// Debug implements Logger.
func (z *ZapLogger) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

// Info implements Logger.
func (z *ZapLogger) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn implements Logger.
func (z *ZapLogger) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error implements Logger.
func (z *ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error { return z.sugar.Sync() }
