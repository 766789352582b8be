package supervision_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/pkg/supervision"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()

	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connectTestNATS(t *testing.T) *nats.Conn {
	t.Helper()

	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func subscribe(t *testing.T, nc *nats.Conn, subject string) chan *nats.Msg {
	t.Helper()

	ch := make(chan *nats.Msg, 32)
	sub, err := nc.ChanSubscribe(subject, ch)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return ch
}

func waitMsg(t *testing.T, ch chan *nats.Msg) *nats.Msg {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for agent event")
		return nil
	}
}

// eventEnvelope mirrors the published JSON shape.
type eventEnvelope struct {
	Name      string         `json:"name"`
	AgentType string         `json:"agent_type"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
	Progress  map[string]any `json:"progress"`
}

func TestNATSSupervisor_RegisterAgentPublishes(t *testing.T) {
	nc := connectTestNATS(t)
	ch := subscribe(t, nc, "steward.agents.worker-1.registered")

	sup := supervision.NewNATSSupervisor(nc)
	err := sup.RegisterAgent(context.Background(), "worker-1", "recovery", map[string]any{"pipeline": "build"})
	require.NoError(t, err)

	msg := waitMsg(t, ch)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))

	assert.Equal(t, "worker-1", env.Name)
	assert.Equal(t, "recovery", env.AgentType)
	assert.Equal(t, "registered", env.Event)
	assert.Equal(t, map[string]any{"pipeline": "build"}, env.Metadata)
	assert.WithinDuration(t, time.Now(), env.Timestamp, time.Minute)
}

func TestNATSSupervisor_HeartbeatPublishesProgress(t *testing.T) {
	nc := connectTestNATS(t)
	ch := subscribe(t, nc, "steward.agents.worker-1.heartbeat")

	sup := supervision.NewNATSSupervisor(nc)
	err := sup.AgentHeartbeat(context.Background(), "worker-1", map[string]any{"phase": "diagnose", "attempt": 2})
	require.NoError(t, err)

	msg := waitMsg(t, ch)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))

	assert.Equal(t, "heartbeat", env.Event)
	assert.Equal(t, map[string]any{"phase": "diagnose", "attempt": float64(2)}, env.Progress)
}

func TestNATSSupervisor_UnregisterAgentPublishes(t *testing.T) {
	nc := connectTestNATS(t)
	ch := subscribe(t, nc, "steward.agents.worker-1.unregistered")

	sup := supervision.NewNATSSupervisor(nc)
	require.NoError(t, sup.UnregisterAgent(context.Background(), "worker-1"))

	msg := waitMsg(t, ch)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))

	assert.Equal(t, "worker-1", env.Name)
	assert.Equal(t, "unregistered", env.Event)
	assert.Empty(t, env.AgentType)
	assert.Empty(t, env.Progress)
}

func TestNATSSupervisor_SubjectPrefixOption(t *testing.T) {
	nc := connectTestNATS(t)
	ch := subscribe(t, nc, "ci.agents.worker-1.registered")

	sup := supervision.NewNATSSupervisor(nc, supervision.WithSubjectPrefix("ci.agents"))
	require.NoError(t, sup.RegisterAgent(context.Background(), "worker-1", "recovery", nil))

	msg := waitMsg(t, ch)
	assert.Equal(t, "ci.agents.worker-1.registered", msg.Subject)
}

func TestNATSSupervisor_NilConnection(t *testing.T) {
	sup := supervision.NewNATSSupervisor(nil)
	ctx := context.Background()

	assert.ErrorIs(t, sup.RegisterAgent(ctx, "worker-1", "recovery", nil), supervision.ErrNoSupervisor)
	assert.ErrorIs(t, sup.UnregisterAgent(ctx, "worker-1"), supervision.ErrNoSupervisor)
	assert.ErrorIs(t, sup.AgentHeartbeat(ctx, "worker-1", nil), supervision.ErrNoSupervisor)
}

func TestNATSSupervisor_EmptyName(t *testing.T) {
	nc := connectTestNATS(t)
	sup := supervision.NewNATSSupervisor(nc)

	err := sup.RegisterAgent(context.Background(), "", "recovery", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent name is required")
}

func TestNATSSupervisor_ClosedConnectionSurfacesError(t *testing.T) {
	nc := connectTestNATS(t)
	nc.Close()

	sup := supervision.NewNATSSupervisor(nc)
	err := sup.AgentHeartbeat(context.Background(), "worker-1", nil)

	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestNATSSupervisor_CancelledContext(t *testing.T) {
	nc := connectTestNATS(t)
	sup := supervision.NewNATSSupervisor(nc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sup.AgentHeartbeat(ctx, "worker-1", nil), context.Canceled)
}

func TestSupervised_ExecutePublishesLifecycleOverNATS(t *testing.T) {
	nc := connectTestNATS(t)
	ch := subscribe(t, nc, "steward.agents.worker-1.>")

	agent, err := supervision.NewSupervised(supervision.Config{
		AgentName:         "worker-1",
		AgentType:         "recovery",
		HeartbeatInterval: 5 * time.Millisecond,
		JoinTimeout:       100 * time.Millisecond,
	}, supervision.NewNATSSupervisor(nc), nil)
	require.NoError(t, err)

	err = agent.Execute(context.Background(), nil, func(context.Context) error {
		agent.Progress().Set(map[string]any{"phase": "repair"})
		time.Sleep(30 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	var events []string
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case msg := <-ch:
			var env eventEnvelope
			require.NoError(t, json.Unmarshal(msg.Data, &env))
			events = append(events, env.Event)
			if env.Event == "unregistered" {
				break collect
			}
		case <-deadline:
			t.Fatal("timeout waiting for unregistered event")
		}
	}

	assert.Equal(t, "registered", events[0])
	assert.Equal(t, "unregistered", events[len(events)-1])
	assert.Contains(t, events, "heartbeat")
}
