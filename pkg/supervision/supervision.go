package supervision

import (
	"context"
	"errors"
)

// Sentinel errors returned by supervision components.
var (
	// ErrInvalidConfig indicates a Supervised configuration that cannot
	// be used.
	ErrInvalidConfig = errors.New("invalid supervision config")

	// ErrNoSupervisor indicates that no supervisor backend is available
	// to receive lifecycle events. Heartbeat senders treat it as routine
	// rather than as a fault.
	ErrNoSupervisor = errors.New("no supervisor available")
)

// Supervisor receives agent lifecycle events. Implementations must be safe
// for concurrent use: the heartbeat goroutine calls AgentHeartbeat while
// the owning agent registers and unregisters.
type Supervisor interface {
	// RegisterAgent announces that the named agent is online.
	RegisterAgent(ctx context.Context, name, agentType string, metadata map[string]any) error

	// UnregisterAgent announces that the named agent has gone offline.
	UnregisterAgent(ctx context.Context, name string) error

	// AgentHeartbeat reports liveness along with a progress snapshot.
	AgentHeartbeat(ctx context.Context, name string, progress map[string]any) error
}

// NopSupervisor discards all lifecycle events. It is the default backend
// for agents that run without a control plane and keeps tests free of
// transport concerns.
type NopSupervisor struct{}

var _ Supervisor = NopSupervisor{}

// RegisterAgent implements Supervisor.
func (NopSupervisor) RegisterAgent(context.Context, string, string, map[string]any) error {
	return nil
}

// UnregisterAgent implements Supervisor.
func (NopSupervisor) UnregisterAgent(context.Context, string) error { return nil }

// AgentHeartbeat implements Supervisor.
func (NopSupervisor) AgentHeartbeat(context.Context, string, map[string]any) error { return nil }
