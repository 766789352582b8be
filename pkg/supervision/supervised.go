package supervision

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var supervisionTracer = otel.Tracer("steward.supervision")

// Agent names become transport subject tokens, so whitespace, dots, and
// other separators are rejected.
var agentNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Config controls the identity and cadence of a supervised agent.
type Config struct {
	// AgentName uniquely identifies the agent to the supervisor.
	// Required.
	AgentName string `koanf:"agent_name"`

	// AgentType groups agents by role, for example "recovery".
	AgentType string `koanf:"agent_type"`

	// HeartbeatInterval is the pause between liveness reports.
	// Defaults to 30s.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// JoinTimeout bounds how long shutdown waits for the heartbeat
	// goroutine to exit. Defaults to 5s.
	JoinTimeout time.Duration `koanf:"join_timeout"`
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AgentName == "" {
		return fmt.Errorf("%w: agent name is required", ErrInvalidConfig)
	}
	if !agentNamePattern.MatchString(c.AgentName) {
		return fmt.Errorf("%w: agent name %q is not a safe subject token", ErrInvalidConfig, c.AgentName)
	}
	return nil
}

// Supervised manages the supervision lifecycle of one agent: registration,
// a background heartbeat, and guaranteed cleanup around a unit of work.
type Supervised struct {
	config  Config
	sup     Supervisor
	logger  *zap.Logger
	tracker *ProgressTracker

	mu         sync.Mutex
	registered bool
	hb         *heartbeat
}

// NewSupervised creates a lifecycle manager for one agent. A nil
// supervisor falls back to NopSupervisor so callers can run unsupervised
// without branching.
func NewSupervised(cfg Config, sup Supervisor, logger *zap.Logger) (*Supervised, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sup == nil {
		sup = NopSupervisor{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Supervised{
		config:  cfg,
		sup:     sup,
		logger:  logger.With(zap.String("agent", cfg.AgentName)),
		tracker: NewProgressTracker(),
	}, nil
}

// Progress returns the tracker whose snapshot each heartbeat carries.
// Work callbacks update it to publish progress without extra plumbing.
func (s *Supervised) Progress() *ProgressTracker {
	return s.tracker
}

// Registered reports whether the agent currently holds a registration.
func (s *Supervised) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Register announces the agent to the supervisor. Calling it again
// replaces the previous registration: the stale one is unregistered
// first, and a failure to do so is logged rather than returned so that
// re-registration always proceeds. Exactly one registration is active
// afterwards.
func (s *Supervised) Register(ctx context.Context, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registered {
		if err := s.sup.UnregisterAgent(ctx, s.config.AgentName); err != nil {
			s.logger.Warn("failed to unregister stale registration", zap.Error(err))
		}
		s.registered = false
	}

	if err := s.sup.RegisterAgent(ctx, s.config.AgentName, s.config.AgentType, metadata); err != nil {
		return fmt.Errorf("failed to register agent %s: %w", s.config.AgentName, err)
	}
	s.registered = true
	RegistrationsTotal.WithLabelValues("registered").Inc()
	s.logger.Info("agent registered", zap.String("agent_type", s.config.AgentType))
	return nil
}

// Unregister removes the agent from the supervisor. It is a no-op when
// the agent is not registered. The local flag clears even when the remote
// removal fails; the next registration replaces the stale entry.
func (s *Supervised) Unregister(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registered {
		return nil
	}
	s.registered = false

	if err := s.sup.UnregisterAgent(ctx, s.config.AgentName); err != nil {
		return fmt.Errorf("failed to unregister agent %s: %w", s.config.AgentName, err)
	}
	RegistrationsTotal.WithLabelValues("unregistered").Inc()
	s.logger.Info("agent unregistered")
	return nil
}

// Execute runs work under full supervision: the agent is registered, a
// heartbeat goroutine reports liveness for the duration of the call, and
// both are torn down when the work ends, whether it returns or panics.
// Cleanup failures are logged and never replace the work's own result.
// Registration failure aborts before the work runs.
func (s *Supervised) Execute(ctx context.Context, metadata map[string]any, work func(context.Context) error) error {
	ctx, span := supervisionTracer.Start(ctx, "supervision.execute",
		trace.WithAttributes(
			attribute.String("agent.name", s.config.AgentName),
			attribute.String("agent.type", s.config.AgentType),
		))
	defer span.End()

	if work == nil {
		err := errors.New("work function is required")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := s.Register(ctx, metadata); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.startHeartbeat()

	// Cleanup runs in fixed order even when the work panics: first stop
	// the heartbeat so no beat outlives the registration, then
	// unregister. A fresh context lets cleanup proceed after the work's
	// context is cancelled.
	defer func() {
		s.stopHeartbeat()
		if err := s.Unregister(context.Background()); err != nil {
			s.logger.Warn("failed to unregister after work", zap.Error(err))
		}
	}()

	if err := work(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *Supervised) startHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hb != nil {
		return
	}
	s.hb = newHeartbeat(s.config.AgentName, s.config.HeartbeatInterval, s.config.JoinTimeout, s.sup, s.tracker, s.logger)
	s.hb.start()
}

func (s *Supervised) stopHeartbeat() {
	s.mu.Lock()
	hb := s.hb
	s.hb = nil
	s.mu.Unlock()

	// Join outside the lock; stop can block up to JoinTimeout.
	if hb != nil {
		hb.stop()
	}
}
