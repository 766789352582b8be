package supervision

import "sync"

// ProgressTracker holds the most recent progress fields reported by an
// agent. The worker goroutine writes through Update and Set while the
// heartbeat goroutine reads snapshots, so all access is lock-guarded.
type ProgressTracker struct {
	mu     sync.RWMutex
	fields map[string]any
}

// NewProgressTracker returns an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{fields: make(map[string]any)}
}

// Update merges fields into the current progress, overwriting existing
// keys and leaving the rest untouched.
func (p *ProgressTracker) Update(fields map[string]any) {
	if len(fields) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range fields {
		p.fields[k] = v
	}
}

// Set replaces the entire progress map with fields.
func (p *ProgressTracker) Set(fields map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fields = make(map[string]any, len(fields))
	for k, v := range fields {
		p.fields[k] = v
	}
}

// Snapshot returns a copy of the current progress. Mutating the returned
// map does not affect the tracker.
func (p *ProgressTracker) Snapshot() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]any, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}
