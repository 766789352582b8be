// internal/logging/testing.go
package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose output lands in an in-memory observer
// instead of stdout, plus assertion helpers over the captured entries.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a debug-level logger that captures everything.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(zapcore.DebugLevel)
	tl := &TestLogger{observed: observed}
	tl.Logger = &Logger{zap: zap.New(core), config: NewDefaultConfig()}
	return tl
}

// All returns the captured entries in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage narrows the captured entries to those whose message
// contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// AssertLogged fails unless some entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("no %v entry containing %q, captured: %+v", level, msgContains, t.All())
}

// AssertField fails unless an entry matching msg carries key with the
// expected value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, entry := range t.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key == key && fieldEquals(field, expected) {
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

func fieldEquals(f zapcore.Field, expected any) bool {
	if f.Type == zapcore.StringType {
		return f.String == expected
	}
	return reflect.DeepEqual(f.Interface, expected)
}

// AssertNoSecrets fails if any captured entry leaks sensitive data.
// The checks derive from the default redaction rules, so they stay in
// step with what production loggers scrub.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()

	rules := NewDefaultConfig().Redaction
	patterns := compilePatterns(rules.Patterns)

	for _, entry := range t.All() {
		if matchesAny(patterns, entry.Message) {
			tb.Errorf("sensitive pattern in message: %q", entry.Message)
		}
		for _, field := range entry.Context {
			checkFieldForSecrets(tb, field, rules.Fields, patterns)
		}
	}
}

// checkFieldForSecrets flags string fields that carry a sensitive key
// or match a credential pattern. Values already masked by the
// redacting encoder are skipped.
func checkFieldForSecrets(tb testing.TB, field zapcore.Field, sensitiveKeys []string, patterns []*regexp.Regexp) {
	tb.Helper()
	if field.Type != zapcore.StringType || strings.Contains(field.String, "[REDACTED") {
		return
	}

	key := strings.ToLower(field.Key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(key, sensitive) && field.String != "" {
			tb.Errorf("sensitive field %q not redacted: %q", field.Key, field.String)
		}
	}
	if matchesAny(patterns, field.String) {
		tb.Errorf("sensitive pattern in field %q: %q", field.Key, field.String)
	}
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

func matchesAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
