// Package lifecycle implements the acquire → load → bind → ready sequence
// every wizard step runs against the document engine.
package lifecycle

import (
	"fmt"
	"sync"
)

// Phase is the position of a step within its lifecycle.
type Phase int

const (
	Idle Phase = iota
	AcquiringContainer
	LoadingArtifact
	BindingWidget
	Ready
	Failed
)

var phaseNames = [...]string{
	Idle:               "idle",
	AcquiringContainer: "acquiring-container",
	LoadingArtifact:    "loading-artifact",
	BindingWidget:      "binding-widget",
	Ready:              "ready",
	Failed:             "failed",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Busy reports whether the phase belongs to an in-flight run.
func (p Phase) Busy() bool {
	return p == AcquiringContainer || p == LoadingArtifact || p == BindingWidget
}

// Tracker records a step's phase and guards against overlapping runs.
type Tracker struct {
	mu      sync.Mutex
	phase   Phase
	err     error
	running bool
	onPhase func(Phase)
}

// NewTracker creates a Tracker in the Idle phase. onPhase, if non-nil, is
// called after every phase change.
func NewTracker(onPhase func(Phase)) *Tracker {
	return &Tracker{onPhase: onPhase}
}

// Begin starts a run. It returns false, changing nothing, when a run is
// already in progress.
func (t *Tracker) Begin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.err = nil
	return true
}

// End finishes the current run.
func (t *Tracker) End() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Running reports whether a run is in progress.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Set moves to phase p.
func (t *Tracker) Set(p Phase) {
	t.mu.Lock()
	t.phase = p
	if p != Failed {
		t.err = nil
	}
	cb := t.onPhase
	t.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

// Fail moves to Failed and records err.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	t.phase = Failed
	t.err = err
	cb := t.onPhase
	t.mu.Unlock()
	if cb != nil {
		cb(Failed)
	}
}

// Invalidate returns a Ready or Failed step to Idle after an upstream change.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	changed := t.phase == Ready || t.phase == Failed
	if changed {
		t.phase = Idle
		t.err = nil
	}
	cb := t.onPhase
	t.mu.Unlock()
	if changed && cb != nil {
		cb(Idle)
	}
}

// Phase returns the current phase.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Err returns the error recorded by the last Fail.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
