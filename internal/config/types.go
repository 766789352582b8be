// internal/config/types.go
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

const redactedMarker = "[REDACTED]"

// Duration is a time.Duration that unmarshals from the textual forms
// koanf hands us ("30s", "1h30m"). Negative values are rejected up
// front so interval math never has to.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Secret holds a credential. Every formatting and marshaling path
// emits a placeholder instead of the value, so an API key that ends
// up in a log line or a dumped config shows as [REDACTED]. Only
// Value() returns the real string.
type Secret string

// mask is what every outbound representation shows. Empty secrets
// stay empty so "not configured" remains distinguishable.
func (s Secret) mask() string {
	if s == "" {
		return ""
	}
	return redactedMarker
}

// Value returns the raw secret.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value is present.
func (s Secret) IsSet() bool {
	return s != ""
}

// String implements fmt.Stringer.
func (s Secret) String() string {
	return s.mask()
}

// GoString implements fmt.GoStringer, covering %#v.
func (s Secret) GoString() string {
	return "Secret(" + redactedMarker + ")"
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.mask())
}

// MarshalText implements encoding.TextMarshaler.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.mask()), nil
}

// MarshalYAML implements yaml.Marshaler.
func (s Secret) MarshalYAML() (any, error) {
	return s.mask(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Inbound values
// are stored as given.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Secret) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}
