// Package logging provides the proxy's severity-tagged log sink.
//
// Severity follows the original service's convention: lower numbers are
// more severe, 0 (error) through 3 (info/default). Output lines are
// formatted "PREFIX [YYYY-MM-DD HH:MM:SS] message", with writes serialized
// by a single mutex-guarded sink so concurrent handlers never interleave a
// line (see zapcore.Lock below).
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Severity levels, in the service's own numbering (lower = more severe).
// They are deliberately mapped onto zap's built-in Level ordering so an
// AtomicLevel can gate them without a custom enabler:
//
//	error(0) -> zapcore.ErrorLevel
//	warn(1)  -> zapcore.WarnLevel
//	hit(2)   -> zapcore.InfoLevel
//	info(3)  -> zapcore.DebugLevel
const (
	LevelError = zapcore.ErrorLevel
	LevelWarn  = zapcore.WarnLevel
	LevelHit   = zapcore.InfoLevel
	LevelInfo  = zapcore.DebugLevel
)

// ParseThreshold maps the service's severity names to the zap level used
// as the AtomicLevel floor. Threshold "info" (level 3, the default)
// enables everything; "error" (level 0) enables only [ERROR] lines.
func ParseThreshold(name string) zapcore.Level {
	switch name {
	case "error":
		return LevelError
	case "warn":
		return LevelWarn
	case "url":
		return LevelHit
	default:
		return LevelInfo
	}
}

func prefixFor(l zapcore.Level) string {
	switch l {
	case zapcore.ErrorLevel:
		return "[ERROR]"
	case zapcore.WarnLevel:
		return "[WARN]"
	case zapcore.InfoLevel:
		return "[URL]"
	default:
		return "[LOG]"
	}
}

// lineEncoder renders entries as "PREFIX [timestamp] message", ignoring
// structured fields to match the plain line-oriented format the service
// has always emitted. It embeds a console encoder purely so it satisfies
// the full zapcore.Encoder surface (Add*/OpenNamespace/Clone) without
// reimplementing it.
type lineEncoder struct {
	zapcore.Encoder
}

func newLineEncoder() zapcore.Encoder {
	return &lineEncoder{Encoder: zapcore.NewConsoleEncoder(zapcore.EncoderConfig{})}
}

func (e *lineEncoder) Clone() zapcore.Encoder {
	return &lineEncoder{Encoder: e.Encoder.Clone()}
}

func (e *lineEncoder) EncodeEntry(ent zapcore.Entry, _ []zapcore.Field) (*buffer.Buffer, error) {
	buf := buffer.NewPool().Get()
	buf.AppendString(prefixFor(ent.Level))
	buf.AppendString(" [")
	buf.AppendString(ent.Time.Format("2006-01-02 15:04:05"))
	buf.AppendString("] ")
	buf.AppendString(ent.Message)
	buf.AppendString("\n")
	return buf, nil
}

// Logger is the proxy's log sink. The zero value is not usable; use New.
type Logger struct {
	base *zap.Logger
}

// New builds a Logger writing to stdout, enabled from threshold down to
// [ERROR] (i.e. everything at or more severe than threshold).
func New(threshold zapcore.Level) *Logger {
	core := zapcore.NewCore(newLineEncoder(), zapcore.Lock(zapcore.AddSync(os.Stdout)), zap.NewAtomicLevelAt(threshold))
	return &Logger{base: zap.New(core)}
}

// Info logs a general informational line, prefix [LOG], level 3.
func (l *Logger) Info(msg string) { l.base.Debug(msg) }

// Hit logs a URL access record, prefix [URL], level 2.
func (l *Logger) Hit(url string) { l.base.Info(url) }

// Warn logs a warning, prefix [WARN], level 1.
func (l *Logger) Warn(msg string) { l.base.Warn(msg) }

// Error logs an error, prefix [ERROR], level 0.
func (l *Logger) Error(msg string) { l.base.Error(msg) }

// Sync flushes any buffered log output.
func (l *Logger) Sync() error { return l.base.Sync() }
