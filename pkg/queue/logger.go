package queue

import "log/slog"

// Logger is the minimal log sink the CORE depends on — an injected port
// (spec 9: the core "emits logs via a caller-provided sink"), not a concrete
// logging library. The subset below mirrors what the teacher's pkg/logger
// code actually calls.
type Logger interface {
	Debugw(msg string, kv ...any)
	Infow(msg string, kv ...any)
	Warnw(msg string, kv ...any)
	Errorw(msg string, kv ...any)
}

// SlogLogger adapts a *slog.Logger (the teacher's pkg/logger.L) to Logger.
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger wraps l, falling back to slog.Default() if l is nil.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{L: l}
}

func (s SlogLogger) Debugw(msg string, kv ...any) { s.L.Debug(msg, kv...) }
func (s SlogLogger) Infow(msg string, kv ...any)  { s.L.Info(msg, kv...) }
func (s SlogLogger) Warnw(msg string, kv ...any)  { s.L.Warn(msg, kv...) }
func (s SlogLogger) Errorw(msg string, kv ...any) { s.L.Error(msg, kv...) }

// DiscardLogger is a no-op Logger, used as the zero-config default in tests.
type DiscardLogger struct{}

func (DiscardLogger) Debugw(string, ...any) {}
func (DiscardLogger) Infow(string, ...any)  {}
func (DiscardLogger) Warnw(string, ...any)  {}
func (DiscardLogger) Errorw(string, ...any) {}
