package supervision

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type supCall struct {
	method    string
	name      string
	agentType string
	metadata  map[string]any
	progress  map[string]any
}

// fakeSupervisor records every lifecycle call in order.
type fakeSupervisor struct {
	mu            sync.Mutex
	calls         []supCall
	registerErr   error
	unregisterErr error
	heartbeatErr  error
}

func (f *fakeSupervisor) RegisterAgent(_ context.Context, name, agentType string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, supCall{method: "register", name: name, agentType: agentType, metadata: metadata})
	return f.registerErr
}

func (f *fakeSupervisor) UnregisterAgent(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, supCall{method: "unregister", name: name})
	return f.unregisterErr
}

func (f *fakeSupervisor) AgentHeartbeat(_ context.Context, name string, progress map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, supCall{method: "heartbeat", name: name, progress: progress})
	return f.heartbeatErr
}

func (f *fakeSupervisor) snapshot() []supCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]supCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeSupervisor) methods() []string {
	calls := f.snapshot()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeSupervisor) count(method string) int {
	n := 0
	for _, c := range f.snapshot() {
		if c.method == method {
			n++
		}
	}
	return n
}

func newTestAgent(t *testing.T, fake Supervisor) *Supervised {
	t.Helper()

	agent, err := NewSupervised(Config{
		AgentName:         "worker-1",
		AgentType:         "recovery",
		HeartbeatInterval: 5 * time.Millisecond,
		JoinTimeout:       100 * time.Millisecond,
	}, fake, zap.NewNop())
	require.NoError(t, err)
	return agent
}

func TestNewSupervised_Validation(t *testing.T) {
	tests := []struct {
		name      string
		agentName string
		wantErr   bool
	}{
		{"empty name", "", true},
		{"whitespace", "agent one", true},
		{"dot is a subject separator", "a.b", true},
		{"leading dash", "-worker", true},
		{"plain", "worker1", false},
		{"underscore and dash", "recovery-worker_2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSupervised(Config{AgentName: tt.agentName}, nil, zap.NewNop())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSupervised_Defaults(t *testing.T) {
	agent, err := NewSupervised(Config{AgentName: "worker-1"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, agent.config.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, agent.config.JoinTimeout)

	_, isNop := agent.sup.(NopSupervisor)
	assert.True(t, isNop)
	assert.NotNil(t, agent.Progress())
	assert.False(t, agent.Registered())
}

func TestSupervised_RegisterIsIdempotent(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)
	ctx := context.Background()

	require.NoError(t, agent.Register(ctx, map[string]any{"generation": 1}))
	require.NoError(t, agent.Register(ctx, map[string]any{"generation": 2}))

	// The second call replaces the first registration.
	assert.Equal(t, []string{"register", "unregister", "register"}, fake.methods())
	assert.True(t, agent.Registered())

	calls := fake.snapshot()
	last := calls[len(calls)-1]
	assert.Equal(t, "worker-1", last.name)
	assert.Equal(t, "recovery", last.agentType)
	assert.Equal(t, map[string]any{"generation": 2}, last.metadata)
}

func TestSupervised_RegisterProceedsPastStaleUnregisterError(t *testing.T) {
	fake := &fakeSupervisor{unregisterErr: errors.New("connection refused")}
	agent := newTestAgent(t, fake)
	ctx := context.Background()

	require.NoError(t, agent.Register(ctx, nil))
	require.NoError(t, agent.Register(ctx, nil))

	assert.Equal(t, []string{"register", "unregister", "register"}, fake.methods())
	assert.True(t, agent.Registered())
}

func TestSupervised_RegisterFailure(t *testing.T) {
	fake := &fakeSupervisor{registerErr: errors.New("connection refused")}
	agent := newTestAgent(t, fake)

	err := agent.Register(context.Background(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register agent worker-1")
	assert.False(t, agent.Registered())
}

func TestSupervised_UnregisterWhenNotRegisteredIsNoOp(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)

	require.NoError(t, agent.Unregister(context.Background()))
	assert.Empty(t, fake.methods())
}

func TestSupervised_UnregisterClearsLocalStateOnError(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)
	ctx := context.Background()
	require.NoError(t, agent.Register(ctx, nil))

	fake.unregisterErr = errors.New("connection refused")
	err := agent.Unregister(ctx)

	require.Error(t, err)
	assert.False(t, agent.Registered())

	// A second call is a no-op; the stale remote entry is the next
	// registration's problem.
	require.NoError(t, agent.Unregister(ctx))
	assert.Equal(t, 1, fake.count("unregister"))
}

func TestSupervised_ExecuteLifecycleOrder(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)
	agent.Progress().Set(map[string]any{"phase": "diagnose"})

	err := agent.Execute(context.Background(), map[string]any{"pipeline": "build"}, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	methods := fake.methods()
	require.NotEmpty(t, methods)
	assert.Equal(t, "register", methods[0])
	assert.Equal(t, "unregister", methods[len(methods)-1])
	assert.GreaterOrEqual(t, fake.count("heartbeat"), 1)
	assert.False(t, agent.Registered())

	calls := fake.snapshot()
	assert.Equal(t, map[string]any{"pipeline": "build"}, calls[0].metadata)

	var sawBeat bool
	for _, c := range calls {
		if c.method == "heartbeat" {
			assert.Equal(t, "diagnose", c.progress["phase"])
			sawBeat = true
			break
		}
	}
	require.True(t, sawBeat)
}

func TestSupervised_ExecuteReturnsWorkErrorDespiteCleanupFailure(t *testing.T) {
	workErr := errors.New("recovery failed")
	fake := &fakeSupervisor{unregisterErr: errors.New("connection refused")}
	agent := newTestAgent(t, fake)

	err := agent.Execute(context.Background(), nil, func(context.Context) error {
		return workErr
	})

	assert.ErrorIs(t, err, workErr)
	assert.Equal(t, 1, fake.count("unregister"))
	assert.False(t, agent.Registered())
}

func TestSupervised_ExecuteCleanupFailureDoesNotReplaceSuccess(t *testing.T) {
	fake := &fakeSupervisor{unregisterErr: errors.New("connection refused")}
	agent := newTestAgent(t, fake)

	err := agent.Execute(context.Background(), nil, func(context.Context) error {
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, fake.count("unregister"))
}

func TestSupervised_ExecuteRegistrationFailureAbortsWork(t *testing.T) {
	fake := &fakeSupervisor{registerErr: errors.New("connection refused")}
	agent := newTestAgent(t, fake)

	workRan := false
	err := agent.Execute(context.Background(), nil, func(context.Context) error {
		workRan = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, workRan)
	assert.Equal(t, 0, fake.count("heartbeat"))
	assert.Equal(t, 0, fake.count("unregister"))
}

func TestSupervised_ExecutePanicPropagatesAfterCleanup(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = agent.Execute(context.Background(), nil, func(context.Context) error {
			panic("kaboom")
		})
	})

	assert.False(t, agent.Registered())
	methods := fake.methods()
	require.NotEmpty(t, methods)
	assert.Equal(t, "unregister", methods[len(methods)-1])
}

func TestSupervised_ExecuteNilWork(t *testing.T) {
	fake := &fakeSupervisor{}
	agent := newTestAgent(t, fake)

	err := agent.Execute(context.Background(), nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "work function is required")
	assert.Empty(t, fake.methods())
}
