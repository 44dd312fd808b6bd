package pipeline

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"captionizer/internal/services"
)

// Phase names a step of a unit's state machine.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseDone        Phase = "done"
	PhaseFailed      Phase = "failed"
	PhaseCancelled   Phase = "cancelled"
	PhaseConverting  Phase = "converting"
	PhaseSplitting   Phase = "splitting"
	PhaseRecognizing Phase = "recognizing"
	PhaseReading     Phase = "reading"
	PhaseTranslating Phase = "translating"
	PhaseWriting     Phase = "writing"
)

// State is a point-in-time copy of a unit's progress record.
type State struct {
	Phase           Phase
	Progress        float64
	Completed       bool
	Cancelled       bool
	Err             error
	CancelRequested bool
	Outputs         []string
}

// Terminal reports whether the unit has stopped for good.
func (s State) Terminal() bool {
	return s.Completed || s.Cancelled || s.Err != nil
}

// Progress is what a supervisor sees when it polls a unit.
type Progress struct {
	Fraction float64
	// Estimated marks units with no granular signal; the supervisor
	// synthesizes a plausible value for them.
	Estimated bool
}

// Tracker owns a unit's State. The worker goroutine writes it; the supervisor
// only polls it and raises the cancel flag. Once a terminal state is reached
// every further write is ignored.
//
// Units embed a Tracker to satisfy Poll, Cancel, and State.
type Tracker struct {
	mu        sync.Mutex
	state     State
	estimated bool
	cancel    atomic.Bool
}

// NewTracker returns a tracker in the idle phase.
func NewTracker() *Tracker {
	return &Tracker{state: State{Phase: PhaseIdle}}
}

// SetPhase moves the unit to phase unless it already finished.
func (t *Tracker) SetPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state.Phase = phase
}

// SetEstimated marks whether Poll should ask for synthesized progress.
func (t *Tracker) SetEstimated(estimated bool) {
	t.mu.Lock()
	t.estimated = estimated
	t.mu.Unlock()
}

// SetProgress records fraction, clamped to [0,1]. Values lower than the last
// recorded one are ignored.
func (t *Tracker) SetProgress(fraction float64) {
	if fraction < 0 || math.IsNaN(fraction) {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() || fraction <= t.state.Progress {
		return
	}
	t.state.Progress = fraction
}

// Complete marks success and records the produced artifacts.
func (t *Tracker) Complete(outputs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state.Phase = PhaseDone
	t.state.Progress = 1
	t.state.Completed = true
	t.state.Outputs = append([]string(nil), outputs...)
}

// MarkCancelled records that the unit stopped on request without output.
func (t *Tracker) MarkCancelled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state.Phase = PhaseCancelled
	t.state.Cancelled = true
}

// Fail attaches err and moves the unit to the failed phase.
func (t *Tracker) Fail(err error) {
	if err == nil {
		err = errors.New("unit failed without an error")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.state.Phase = PhaseFailed
	t.state.Err = err
}

// Resolve records the outcome of a run that returned err: cancellations become
// MarkCancelled and anything else non-nil becomes Fail.
func (t *Tracker) Resolve(err error) {
	switch {
	case err == nil:
	case services.Classify(err) == services.KindCancelled:
		t.MarkCancelled()
	default:
		t.Fail(err)
	}
}

// Cancel raises the cooperative cancel flag.
func (t *Tracker) Cancel() {
	t.cancel.Store(true)
}

// CancelRequested reports whether Cancel was called.
func (t *Tracker) CancelRequested() bool {
	return t.cancel.Load()
}

// Poll returns the current progress.
func (t *Tracker) Poll() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Progress{Fraction: t.state.Progress, Estimated: t.estimated}
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := t.state
	snapshot.Outputs = append([]string(nil), t.state.Outputs...)
	snapshot.CancelRequested = t.cancel.Load()
	return snapshot
}
