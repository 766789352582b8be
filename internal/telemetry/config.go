package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/steward/internal/config"
)

// Config describes the OTLP export setup for one process.
type Config struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol selects the exporter transport, "grpc" (default) or
	// "http/protobuf".
	Protocol       string `koanf:"protocol"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	// Insecure disables TLS. Allowed only against local endpoints.
	Insecure bool `koanf:"insecure"`
	// TLSSkipVerify accepts any collector certificate. For lab setups
	// with self-signed certs.
	TLSSkipVerify bool           `koanf:"tls_skip_verify"`
	Sampling      SamplingConfig `koanf:"sampling"`
	Metrics       MetricsConfig  `koanf:"metrics"`
	Shutdown      ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig sets the trace sampling rate, 0.0 through 1.0.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"`
}

// MetricsConfig switches metric export and its cadence.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig bounds how long Shutdown waits for final exports.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults aimed at local development: off
// until explicitly enabled, gRPC to a collector on localhost, full
// sampling, metrics every 15s.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       protocolGRPC,
		ServiceName:    "steward",
		ServiceVersion: "0.1.0",
		Insecure:       true,
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks the config. A disabled config always passes, so the
// zero value plus Enabled=false never blocks startup.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	for _, req := range []struct{ val, name string }{
		{c.Endpoint, "endpoint"},
		{c.ServiceName, "service_name"},
	} {
		if req.val == "" {
			return fmt.Errorf("%s is required when telemetry is enabled", req.name)
		}
	}

	if c.Protocol != "" && c.Protocol != protocolGRPC && c.Protocol != protocolHTTP {
		return fmt.Errorf("protocol must be %q or %q, got %q", protocolGRPC, protocolHTTP, c.Protocol)
	}

	// Plaintext export leaks span payloads, so it stays on-box.
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether the endpoint points at this machine.
func (c *Config) isLocalEndpoint() bool {
	host, _, err := net.SplitHostPort(c.Endpoint)
	if err != nil {
		// No port, or unbracketed IPv6. Strip brackets and match the raw form.
		host = strings.Trim(c.Endpoint, "[]")
	}

	switch {
	case host == "localhost":
		return true
	case strings.HasPrefix(host, "127."):
		return true
	case strings.HasPrefix(host, "::1"):
		// Covers ::1 and the unbracketed ::1:4317 form.
		return true
	}
	return false
}
