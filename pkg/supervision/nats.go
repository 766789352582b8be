package supervision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultSubjectPrefix = "steward.agents"

// agentEvent is the JSON envelope published for every lifecycle event.
type agentEvent struct {
	Name      string         `json:"name"`
	AgentType string         `json:"agent_type,omitempty"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Progress  map[string]any `json:"progress,omitempty"`
}

// NATSSupervisor publishes agent lifecycle events to NATS.
//
// Events are published fire-and-forget to subjects:
//   - steward.agents.{name}.registered
//   - steward.agents.{name}.unregistered
//   - steward.agents.{name}.heartbeat
//
// Subscribers (dashboards, watchdogs) decide what the events mean; the
// publisher never waits for consumers. A closed or failed connection
// surfaces the nats error to the caller.
type NATSSupervisor struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

var _ Supervisor = (*NATSSupervisor)(nil)

// NATSOption customizes a NATSSupervisor.
type NATSOption func(*NATSSupervisor)

// WithSubjectPrefix overrides the default "steward.agents" subject prefix.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(s *NATSSupervisor) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithNATSLogger sets the logger used for publish diagnostics.
func WithNATSLogger(logger *zap.Logger) NATSOption {
	return func(s *NATSSupervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewNATSSupervisor returns a Supervisor that publishes lifecycle events
// on the given connection. A nil connection is tolerated; every call then
// returns ErrNoSupervisor, which heartbeat senders downgrade to a debug
// log.
func NewNATSSupervisor(nc *nats.Conn, opts ...NATSOption) *NATSSupervisor {
	s := &NATSSupervisor{
		nc:     nc,
		prefix: defaultSubjectPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAgent implements Supervisor.
func (s *NATSSupervisor) RegisterAgent(ctx context.Context, name, agentType string, metadata map[string]any) error {
	return s.publish(ctx, "registered", agentEvent{
		Name:      name,
		AgentType: agentType,
		Metadata:  metadata,
	})
}

// UnregisterAgent implements Supervisor.
func (s *NATSSupervisor) UnregisterAgent(ctx context.Context, name string) error {
	return s.publish(ctx, "unregistered", agentEvent{Name: name})
}

// AgentHeartbeat implements Supervisor.
func (s *NATSSupervisor) AgentHeartbeat(ctx context.Context, name string, progress map[string]any) error {
	return s.publish(ctx, "heartbeat", agentEvent{Name: name, Progress: progress})
}

func (s *NATSSupervisor) publish(ctx context.Context, event string, evt agentEvent) error {
	if s.nc == nil {
		return ErrNoSupervisor
	}
	if evt.Name == "" {
		return errors.New("agent name is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	evt.Event = event
	evt.Timestamp = time.Now().UTC()

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event, err)
	}

	subject := fmt.Sprintf("%s.%s.%s", s.prefix, evt.Name, event)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event, err)
	}
	s.logger.Debug("published agent event", zap.String("subject", subject))
	return nil
}
