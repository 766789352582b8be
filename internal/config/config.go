// internal/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config holds the complete steward configuration.
type Config struct {
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
	Pipeline    PipelineConfig    `koanf:"pipeline"`
	Workflow    WorkflowConfig    `koanf:"workflow"`
	Supervision SupervisionConfig `koanf:"supervision"`
	LLM         LLMConfig         `koanf:"llm"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig controls OTLP export.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"` // grpc | http
	Insecure    bool    `koanf:"insecure"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// PipelineConfig controls the pipeline state machine.
type PipelineConfig struct {
	// StateDir is where per-card snapshot files are written.
	// Empty disables persistence.
	StateDir string `koanf:"state_dir"`
}

// WorkflowConfig controls the recovery workflow engine.
type WorkflowConfig struct {
	InitialBackoff Duration `koanf:"initial_backoff"`
	BackoffFactor  float64  `koanf:"backoff_factor"`
	MaxHistory     int      `koanf:"max_history"`
}

// SupervisionConfig controls agent supervision.
type SupervisionConfig struct {
	HeartbeatInterval Duration `koanf:"heartbeat_interval"`
	JoinTimeout       Duration `koanf:"join_timeout"`
	NATSURL           string   `koanf:"nats_url"`
	SubjectPrefix     string   `koanf:"subject_prefix"`
}

// LLMConfig controls the LLM consultation client.
type LLMConfig struct {
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            Secret  `koanf:"api_key"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`
	Temperature       float64 `koanf:"temperature"`
	MaxTokens         int     `koanf:"max_tokens"`
}

// VectorStoreConfig selects and configures the similarity store backend.
type VectorStoreConfig struct {
	Provider string        `koanf:"provider"` // chromem | qdrant
	Chromem  ChromemConfig `koanf:"chromem"`
	Qdrant   QdrantConfig  `koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go store.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
	Compress bool   `koanf:"compress"`
}

// QdrantConfig configures the Qdrant gRPC store.
type QdrantConfig struct {
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	UseTLS     bool   `koanf:"use_tls"`
	Collection string `koanf:"collection"`
	VectorSize uint64 `koanf:"vector_size"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	// Telemetry defaults
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "steward"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRatio == 0 {
		cfg.Telemetry.SampleRatio = 1.0
	}

	// Workflow defaults
	if cfg.Workflow.InitialBackoff == 0 {
		cfg.Workflow.InitialBackoff = Duration(time.Second)
	}
	if cfg.Workflow.BackoffFactor == 0 {
		cfg.Workflow.BackoffFactor = 2.0
	}
	if cfg.Workflow.MaxHistory == 0 {
		cfg.Workflow.MaxHistory = 100
	}

	// Supervision defaults
	if cfg.Supervision.HeartbeatInterval == 0 {
		cfg.Supervision.HeartbeatInterval = Duration(30 * time.Second)
	}
	if cfg.Supervision.JoinTimeout == 0 {
		cfg.Supervision.JoinTimeout = Duration(5 * time.Second)
	}
	if cfg.Supervision.SubjectPrefix == "" {
		cfg.Supervision.SubjectPrefix = "steward.agents"
	}

	// LLM defaults
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 1
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}

	// VectorStore defaults (chromem is default - embedded, no external deps)
	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "chromem"
	}
	if cfg.VectorStore.Qdrant.Host == "" {
		cfg.VectorStore.Qdrant.Host = "localhost"
	}
	if cfg.VectorStore.Qdrant.Port == 0 {
		cfg.VectorStore.Qdrant.Port = 6334
	}
	if cfg.VectorStore.Qdrant.Collection == "" {
		cfg.VectorStore.Qdrant.Collection = "steward_solutions"
	}
	if cfg.VectorStore.Qdrant.VectorSize == 0 {
		cfg.VectorStore.Qdrant.VectorSize = 384
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
		return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be in [0,1], got %v", c.Telemetry.SampleRatio)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name required when telemetry is enabled")
	}
	if c.Workflow.BackoffFactor < 1 {
		return fmt.Errorf("workflow.backoff_factor must be >= 1, got %v", c.Workflow.BackoffFactor)
	}
	if c.Workflow.MaxHistory < 0 {
		return fmt.Errorf("workflow.max_history must be >= 0, got %d", c.Workflow.MaxHistory)
	}
	if c.Supervision.HeartbeatInterval.Duration() <= 0 {
		return fmt.Errorf("supervision.heartbeat_interval must be > 0")
	}
	if c.Supervision.JoinTimeout.Duration() <= 0 {
		return fmt.Errorf("supervision.join_timeout must be > 0")
	}
	if c.LLM.RequestsPerSecond <= 0 {
		return fmt.Errorf("llm.requests_per_second must be > 0, got %v", c.LLM.RequestsPerSecond)
	}
	switch c.VectorStore.Provider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("vectorstore.provider must be 'chromem' or 'qdrant', got %q", c.VectorStore.Provider)
	}
	if c.VectorStore.Provider == "qdrant" {
		q := c.VectorStore.Qdrant
		if q.Port <= 0 || q.Port > 65535 {
			return fmt.Errorf("vectorstore.qdrant.port invalid: %d", q.Port)
		}
		if q.VectorSize == 0 {
			return fmt.Errorf("vectorstore.qdrant.vector_size required")
		}
	}
	return nil
}
