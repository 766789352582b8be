package logging

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/steward/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSecretField(t *testing.T) {
	secret := config.Secret("super-secret-value")

	field := Secret("password", secret)

	assert.Equal(t, zapcore.StringType, field.Type)
	assert.Equal(t, "[REDACTED:18]", field.String)
}

func TestRedactedString(t *testing.T) {
	tl := NewTestLogger()

	tl.Info(context.Background(), "key loaded", RedactedString("api_key", "sk-1234567890abcdef"))

	tl.AssertField(t, "key loaded", "api_key", "[REDACTED:19]")
	tl.AssertNoSecrets(t)
}

func TestNewRedactingEncoder(t *testing.T) {
	cfg := NewDefaultConfig()
	base := newEncoder("json")

	encoder, err := NewRedactingEncoder(base, cfg.Redaction)

	require.NoError(t, err)
	require.NotNil(t, encoder)
	assert.Len(t, encoder.redactFields, len(cfg.Redaction.Fields))
	assert.Len(t, encoder.redactRegex, len(cfg.Redaction.Patterns))
}

func TestNewRedactingEncoder_Disabled(t *testing.T) {
	base := newEncoder("json")

	encoder, err := NewRedactingEncoder(base, RedactionConfig{Enabled: false})

	require.NoError(t, err)
	assert.Empty(t, encoder.redactFields)
	assert.Empty(t, encoder.redactRegex)
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  true,
		Fields:   []string{"password"},
		Patterns: []string{"(?i)bearer\\s+\\S+", "[invalid("},
	}
	base := newEncoder("json")

	encoder, err := NewRedactingEncoder(base, cfg)

	assert.Error(t, err)
	assert.Nil(t, encoder)
	assert.Contains(t, err.Error(), "invalid redaction pattern")
}

func TestRedactingEncoder_AddString(t *testing.T) {
	cfg := NewDefaultConfig()
	base := newEncoder("json")
	encoder, err := NewRedactingEncoder(base, cfg.Redaction)
	require.NoError(t, err)

	tests := []struct {
		name     string
		key      string
		val      string
		redacted bool
	}{
		{"sensitive key", "password", "hunter2", true},
		{"sensitive key mixed case", "PASSWORD", "hunter2", true},
		{"bearer pattern in value", "header", "Bearer abc123", true},
		{"api key pattern in value", "note", "api_key=sk-999", true},
		{"plain field", "stage", "build", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clone := encoder.Clone().(*RedactingEncoder)
			clone.AddString(tt.key, tt.val)

			buf, err := clone.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
			require.NoError(t, err)

			if tt.redacted {
				assert.NotContains(t, buf.String(), tt.val)
				assert.Contains(t, buf.String(), "[REDACTED")
			} else {
				assert.Contains(t, buf.String(), tt.val)
			}
		})
	}
}

func TestRedactingEncoder_EndToEnd(t *testing.T) {
	cfg := NewDefaultConfig()
	base := newEncoder("json")
	encoder, err := NewRedactingEncoder(base, cfg.Redaction)
	require.NoError(t, err)

	core := zapcore.NewCore(encoder, zapcore.AddSync(&discardSyncer{}), zapcore.InfoLevel)
	logger := zap.New(core)

	// Must not panic through the full Add* surface.
	logger.Info("mixed fields",
		zap.String("token", "abc"),
		zap.ByteString("secret", []byte("xyz")),
		zap.Binary("private_key", []byte{1, 2}),
		zap.Any("credential", map[string]string{"user": "u"}),
		zap.Strings("api_key", []string{"a"}),
		zap.String("stage", "test"),
	)
}

type discardSyncer struct{}

func (d *discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (d *discardSyncer) Sync() error                 { return nil }
