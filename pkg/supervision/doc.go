// Package supervision keeps long-running agents visible to an external
// control plane.
//
// # Overview
//
// A Supervised wraps one agent. It registers the agent with a Supervisor,
// reports liveness from a background heartbeat goroutine, and guarantees
// that both are torn down when the agent's work ends. The Supervisor
// interface abstracts the backend: NATSSupervisor publishes lifecycle
// events onto a NATS subject hierarchy, NopSupervisor discards them.
//
// Progress flows through a ProgressTracker. The work callback updates the
// tracker and every heartbeat carries a snapshot of it, so observers see
// both that the agent is alive and what it is currently doing.
//
// # Usage
//
//	sup := supervision.NewNATSSupervisor(nc)
//	agent, err := supervision.NewSupervised(supervision.Config{
//		AgentName: "recovery-worker-1",
//		AgentType: "recovery",
//	}, sup, logger)
//	if err != nil {
//		return err
//	}
//
//	err = agent.Execute(ctx, map[string]any{"pipeline": "build"}, func(ctx context.Context) error {
//		agent.Progress().Update(map[string]any{"phase": "diagnose"})
//		return recover.Run(ctx)
//	})
//
// Execute registers the agent, heartbeats for the duration of the callback,
// and then stops the heartbeat and unregisters in that order, even when the
// callback returns an error or panics.
package supervision
