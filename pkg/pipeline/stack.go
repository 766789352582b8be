package pipeline

import "time"

// StateStack holds the frames pushed before risky operations so the
// machine can roll back to an earlier state. It is not safe for
// concurrent use; the machine's mutex guards it.
type StateStack struct {
	frames []StackFrame
}

// Push records a state with the context it was entered under.
func (s *StateStack) Push(state State, context map[string]any) {
	s.frames = append(s.frames, StackFrame{
		State:    state,
		Context:  copyMap(context),
		PushedAt: time.Now().UTC(),
	})
}

// Pop removes and returns the most recent frame. The second return is
// false when the stack is empty.
func (s *StateStack) Pop() (StackFrame, bool) {
	if len(s.frames) == 0 {
		return StackFrame{}, false
	}
	frame := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return frame, true
}

// Peek returns the most recent frame without removing it.
func (s *StateStack) Peek() (StackFrame, bool) {
	if len(s.frames) == 0 {
		return StackFrame{}, false
	}
	return s.frames[len(s.frames)-1], true
}

// Depth returns the number of frames on the stack.
func (s *StateStack) Depth() int {
	return len(s.frames)
}

// framesTo returns how many frames must be popped to land on the most
// recent frame holding target, or 0 when no frame holds it.
func (s *StateStack) framesTo(target State) int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].State == target {
			return len(s.frames) - i
		}
	}
	return 0
}
