// internal/logging/otel.go
package logging

import (
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// newCore assembles the zap core from the configured outputs. Stdout and the
// OTEL bridge can both be active; every entry goes to each.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stdout {
		core, err := newStdoutCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, core)
	}

	if cfg.Output.OTEL && otelProvider != nil {
		cores = append(cores, newBridgeCore(otelProvider))
	}

	switch len(cores) {
	case 0:
		return nil, errors.New("at least one output must be enabled and available")
	case 1:
		return cores[0], nil
	default:
		return zapcore.NewTee(cores...), nil
	}
}

// newStdoutCore builds the stdout core with redaction applied.
func newStdoutCore(cfg *Config) (zapcore.Core, error) {
	encoder, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
	if err != nil {
		return nil, fmt.Errorf("failed to create redacting encoder: %w", err)
	}
	return zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), cfg.Level), nil
}

// newBridgeCore forwards entries to the OTEL logging bridge so log records
// land in the collector alongside traces and metrics.
func newBridgeCore(provider log.LoggerProvider) zapcore.Core {
	return otelzap.NewCore("steward", otelzap.WithLoggerProvider(provider))
}
