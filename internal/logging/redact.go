// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/steward/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxPatternLen bounds redaction regexes as basic ReDoS protection.
const maxPatternLen = 200

const (
	// redactedValue replaces values whose key marks them sensitive.
	redactedValue = "[REDACTED]"
	// redactedByPattern replaces values caught by a pattern match, so
	// operators can tell the two trigger kinds apart.
	redactedByPattern = "[REDACTED:pattern]"
)

// Secret creates a Zap field for config.Secret. The emitted value
// carries only the secret's length so operators can spot empty
// credentials.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a Zap field with a redacted value and its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps a zapcore.Encoder to scrub sensitive fields.
// Keys are matched case-insensitively against the configured field
// list; string values are additionally matched against the configured
// patterns, which catches tokens embedded in LLM prompts and agent
// transcripts.
type RedactingEncoder struct {
	zapcore.Encoder
	redactFields map[string]bool
	redactRegex  []*regexp.Regexp
}

// NewRedactingEncoder wraps base with cfg's rules. A disabled config
// wraps without any rules, leaving the encoder pass-through. Patterns
// must compile and stay under maxPatternLen.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{
		Encoder:      base,
		redactFields: fields,
		redactRegex:  patterns,
	}, nil
}

// sensitiveKey reports whether the field name itself marks the value secret.
func (e *RedactingEncoder) sensitiveKey(key string) bool {
	return e.redactFields[strings.ToLower(key)]
}

// sensitiveValue reports whether the value matches a redaction pattern.
func (e *RedactingEncoder) sensitiveValue(val string) bool {
	for _, re := range e.redactRegex {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// maskIfSensitive writes the marker when the key is sensitive and
// reports whether it did. Non-string field types funnel through here;
// the marker is emitted as a string so it stays readable in output.
func (e *RedactingEncoder) maskIfSensitive(key string) bool {
	if !e.sensitiveKey(key) {
		return false
	}
	e.Encoder.AddString(key, redactedValue)
	return true
}

// AddString redacts by field name and by value pattern.
func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.sensitiveKey(key):
		e.Encoder.AddString(key, redactedValue)
	case e.sensitiveValue(val):
		e.Encoder.AddString(key, redactedByPattern)
	default:
		e.Encoder.AddString(key, val)
	}
}

// AddByteString redacts by field name and by value pattern.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	switch {
	case e.sensitiveKey(key):
		e.Encoder.AddByteString(key, []byte(redactedValue))
	case e.sensitiveValue(string(val)):
		e.Encoder.AddByteString(key, []byte(redactedByPattern))
	default:
		e.Encoder.AddByteString(key, val)
	}
}

// AddBinary redacts by field name.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.maskIfSensitive(key) {
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected redacts by field name. The whole reflected value is
// replaced when the key is sensitive; use explicit zap.Object() with
// custom marshalers when deep inspection is needed.
func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.maskIfSensitive(key) {
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray redacts by field name.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.maskIfSensitive(key) {
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject redacts by field name.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.maskIfSensitive(key) {
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone copies the encoder. The rule tables are immutable after
// construction and shared between clones.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:      e.Encoder.Clone(),
		redactFields: e.redactFields,
		redactRegex:  e.redactRegex,
	}
}
