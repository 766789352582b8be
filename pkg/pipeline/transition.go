package pipeline

import (
	"sort"

	"github.com/looplab/fsm"
)

// TransitionTable declares which state-to-state edges a machine
// accepts. The zero value accepts nothing; NewTransitionTable returns
// the default pipeline topology.
type TransitionTable struct {
	edges map[State]map[State]bool
}

// NewTransitionTable returns the default table covering the full
// pipeline lifecycle, stage execution, recovery, health, and rollback.
// Terminal states have no outgoing edges.
func NewTransitionTable() *TransitionTable {
	t := &TransitionTable{edges: make(map[State]map[State]bool)}

	t.allow(StateIdle, StateInitializing, StateAborted)
	t.allow(StateInitializing, StateRunning, StateFailed, StateAborted)
	t.allow(StateRunning,
		StateStageRunning, StatePaused, StateRecovering, StateRollingBack,
		StateCompleted, StateFailed, StateAborted)
	t.allow(StateStageRunning,
		StateStageCompleted, StateStageFailed, StateStageSkipped,
		StatePaused, StateAborted)
	t.allow(StateStageCompleted, StateStageRunning, StateRunning, StateCompleted)
	t.allow(StateStageFailed,
		StateStageRetrying, StateRecovering, StateRollingBack,
		StateFailed, StateAborted)
	t.allow(StateStageRetrying, StateStageRunning, StateStageFailed, StateAborted)
	t.allow(StateStageSkipped, StateStageRunning, StateRunning, StateCompleted)
	t.allow(StateRecovering,
		StateHealthy, StateRunning, StateStageRunning, StateDegraded,
		StateRollingBack, StateFailed, StateAborted)
	t.allow(StateDegraded, StateRecovering, StateRunning, StateFailed, StateAborted)
	t.allow(StateCritical,
		StateRecovering, StateRollingBack, StateHealthy,
		StateFailed, StateAborted)
	t.allow(StateHealthy,
		StateRunning, StateStageRunning, StateRecovering, StatePaused,
		StateCompleted, StateAborted)
	t.allow(StateDegradedHealth,
		StateHealthy, StateRecovering, StateDegraded, StateRunning,
		StateStageRunning, StateRollingBack, StateFailed, StateAborted)
	t.allow(StatePaused, StateRunning, StateStageRunning, StateRollingBack, StateAborted)
	t.allow(StateRollingBack,
		StateIdle, StateInitializing, StateRunning, StateStageRunning,
		StateStageCompleted, StateHealthy, StateRecovering,
		StateFailed, StateAborted)
	t.allow(StateFailed, StateRecovering, StateRollingBack, StateIdle, StateAborted)

	// Health degradation can interrupt any non-terminal state, so the
	// issue tracker can always surface DEGRADED_HEALTH and CRITICAL.
	for _, s := range allStates {
		if s.IsTerminal() {
			continue
		}
		if s != StateDegradedHealth {
			t.allow(s, StateDegradedHealth)
		}
		if s != StateCritical {
			t.allow(s, StateCritical)
		}
	}

	return t
}

func (t *TransitionTable) allow(from State, to ...State) {
	row, ok := t.edges[from]
	if !ok {
		row = make(map[State]bool)
		t.edges[from] = row
	}
	for _, s := range to {
		row[s] = true
	}
}

// CanTransition reports whether the edge from -> to is accepted.
// Self-transitions are always accepted for valid states; they record
// an event without moving the machine.
func (t *TransitionTable) CanTransition(from, to State) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return t.edges[from][to]
}

// Successors returns the sorted set of states reachable from the given
// state in one transition, excluding the self edge.
func (t *TransitionTable) Successors(from State) []State {
	row := t.edges[from]
	out := make([]State, 0, len(row))
	for s := range row {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// eventName derives the fsm event name that lands in the given state.
// Every edge into a state shares one event, so the table's semantics
// stay in the edge map rather than in event naming.
func eventName(to State) string {
	return "to_" + string(to)
}

// newFSM compiles the table into a looplab fsm seeded at initial. One
// event per destination state carries all of that state's inbound
// edges.
func (t *TransitionTable) newFSM(initial State) *fsm.FSM {
	inbound := make(map[State][]string)
	for from, row := range t.edges {
		for to := range row {
			inbound[to] = append(inbound[to], string(from))
		}
	}

	targets := make([]State, 0, len(inbound))
	for to := range inbound {
		targets = append(targets, to)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })

	events := make([]fsm.EventDesc, 0, len(targets))
	for _, to := range targets {
		srcs := inbound[to]
		sort.Strings(srcs)
		events = append(events, fsm.EventDesc{
			Name: eventName(to),
			Src:  srcs,
			Dst:  string(to),
		})
	}

	return fsm.NewFSM(string(initial), fsm.Events(events), fsm.Callbacks{})
}
