// internal/logging/logger.go
package logging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap.Logger whose level methods take a context and merge
// its correlation fields (trace ids, card id, agent name) in front of
// the explicit ones.
type Logger struct {
	zap    *zap.Logger
	config *Config
}

// NewLogger builds a Logger from cfg. otelProvider backs the OTEL
// output when cfg enables it; pass nil otherwise.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	core, err := newCore(cfg, otelProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to build log core: %w", err)
	}
	return &Logger{zap: zap.New(core, zapOptions(cfg)...), config: cfg}, nil
}

// zapOptions derives construction options from cfg: the caller
// annotation with its frame skip, stacktrace capture, and the sorted
// constant fields.
func zapOptions(cfg *Config) []zap.Option {
	var opts []zap.Option
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Level != 0 {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}
	if fields := constantFields(cfg); len(fields) > 0 {
		opts = append(opts, zap.Fields(fields...))
	}
	return opts
}

// constantFields converts cfg.Fields into zap fields. Keys are sorted
// so restarts produce identical field ordering in encoded output.
func constantFields(cfg *Config) []zap.Field {
	keys := make([]string, 0, len(cfg.Fields))
	for k := range cfg.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, cfg.Fields[k]))
	}
	return fields
}

// newEncoder builds the stdout encoder: production settings with an
// ISO8601 "ts" field. Console encoding exists for humans watching a
// demo, JSON for everything else.
func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder

	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(ec)
	default:
		return zapcore.NewJSONEncoder(ec)
	}
}

// merged puts the context correlation fields ahead of the explicit
// ones. A plain function rather than a method so each level method
// below stays exactly one frame above zap and the configured caller
// skip holds.
func merged(ctx context.Context, fields []zap.Field) []zap.Field {
	return append(ContextFields(ctx), fields...)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Debug(msg, merged(ctx, fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Info(msg, merged(ctx, fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Warn(msg, merged(ctx, fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Error(msg, merged(ctx, fields)...)
}

func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, merged(ctx, fields)...)
}

// With returns a child carrying the extra fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	child := *l
	child.zap = l.zap.With(fields...)
	return &child
}

// Named returns a child with the name segment appended.
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.zap = l.zap.Named(name)
	return &child
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.zap.Core().Enabled(level)
}

// Sync flushes buffered entries. The stdout sync failure Linux
// reports for terminals and pipes is swallowed.
func (l *Logger) Sync() error {
	if err := l.zap.Sync(); err != nil && !isStdoutSyncError(err) {
		return err
	}
	return nil
}

// Underlying exposes the wrapped zap.Logger for packages that take
// *zap.Logger directly.
func (l *Logger) Underlying() *zap.Logger {
	return l.zap
}

// isStdoutSyncError reports whether err is the failure fsync returns
// for a terminal or pipe (EINVAL or ENOTTY). Those targets cannot be
// synced and losing the call is harmless.
func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY)
}
