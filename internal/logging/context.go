// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ctxKey keys the correlation values this package stores in contexts.
type ctxKey int

const (
	cardKey ctxKey = iota
	agentKey
	requestKey
	loggerKey
)

// maxIDLen bounds correlation identifiers. Anything longer is almost
// certainly not an id.
const maxIDLen = 128

// idPattern permits alphanumerics plus dot, hyphen, underscore. No
// separators, so an id can never smuggle a path or a log injection.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// validateID rejects ids that are empty, oversized, non-UTF-8, or
// outside idPattern. label names the offending parameter in the
// message.
func validateID(id, label string) error {
	switch {
	case id == "":
		return fmt.Errorf("%s cannot be empty", label)
	case !utf8.ValidString(id):
		return fmt.Errorf("%s contains invalid UTF-8", label)
	case len(id) > maxIDLen:
		return fmt.Errorf("%s exceeds max length %d", label, maxIDLen)
	case !idPattern.MatchString(id):
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, dot, hyphen, underscore)", label)
	}
	return nil
}

// withValidated panics on a bad id. Correlation ids come from code,
// not user input, so a bad one is a programmer error.
func withValidated(ctx context.Context, key ctxKey, label, id string) context.Context {
	if err := validateID(id, label); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, key, id)
}

func stringFromContext(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// WithCardID stamps the pipeline card id onto the context.
func WithCardID(ctx context.Context, cardID string) context.Context {
	return withValidated(ctx, cardKey, "cardID", cardID)
}

// CardIDFromContext returns the card id, or "" when absent.
func CardIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, cardKey)
}

// WithAgentName stamps the executing agent's name onto the context.
func WithAgentName(ctx context.Context, agent string) context.Context {
	return withValidated(ctx, agentKey, "agent", agent)
}

// AgentNameFromContext returns the agent name, or "" when absent.
func AgentNameFromContext(ctx context.Context) string {
	return stringFromContext(ctx, agentKey)
}

// WithRequestID stamps a request id onto the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValidated(ctx, requestKey, "requestID", requestID)
}

// RequestIDFromContext returns the request id, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestKey)
}

// ContextFields collects the correlation fields carried by ctx: the
// active trace and span ids plus whatever card, agent, and request
// ids were stamped on. Empty values are skipped, so logging with a
// bare context costs nothing.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	for _, kv := range []struct{ key, val string }{
		{"card.id", CardIDFromContext(ctx)},
		{"agent.name", AgentNameFromContext(ctx)},
		{"request.id", RequestIDFromContext(ctx)},
	} {
		if kv.val != "" {
			fields = append(fields, zap.String(kv.key, kv.val))
		}
	}
	return fields
}

// WithLogger stores a Logger in the context for handlers that take
// only a ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the stored Logger, or a nop-backed one so the
// caller never has to nil-check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
