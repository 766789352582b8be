package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.OTEL)
	assert.True(t, cfg.Caller.Enabled)
	assert.Equal(t, 1, cfg.Caller.Skip)
	assert.Equal(t, zapcore.ErrorLevel, cfg.Stacktrace.Level)
	assert.Equal(t, "steward", cfg.Fields["service"])

	require.True(t, cfg.Redaction.Enabled)
	assert.NotEmpty(t, cfg.Redaction.Fields)
	assert.NotEmpty(t, cfg.Redaction.Patterns)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Level:  zapcore.InfoLevel,
			Format: "json",
			Output: OutputConfig{Stdout: true},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "minimal stdout json",
			mutate: func(c *Config) {},
		},
		{
			name:   "console format",
			mutate: func(c *Config) { c.Format = "console" },
		},
		{
			name:   "unknown format",
			mutate: func(c *Config) { c.Format = "xml" },
			errMsg: "format must be 'json' or 'console'",
		},
		{
			name:   "every output disabled",
			mutate: func(c *Config) { c.Output = OutputConfig{} },
			errMsg: "at least one output must be enabled",
		},
		{
			name:   "negative caller skip",
			mutate: func(c *Config) { c.Caller = CallerConfig{Enabled: true, Skip: -1} },
			errMsg: "caller skip must be >= 0",
		},
		{
			name: "redaction pattern does not compile",
			mutate: func(c *Config) {
				c.Redaction = RedactionConfig{Enabled: true, Patterns: []string{"[unclosed("}}
			},
			errMsg: "invalid redaction pattern",
		},
		{
			name: "redaction pattern over length cap",
			mutate: func(c *Config) {
				c.Redaction = RedactionConfig{
					Enabled:  true,
					Patterns: []string{strings.Repeat("a", maxPatternLen+1)},
				}
			},
			errMsg: "too long",
		},
		{
			name:   "static field with empty value",
			mutate: func(c *Config) { c.Fields = map[string]string{"service": ""} },
			errMsg: "empty value",
		},
		{
			name:   "static field with empty key",
			mutate: func(c *Config) { c.Fields = map[string]string{"": "x"} },
			errMsg: "key cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
