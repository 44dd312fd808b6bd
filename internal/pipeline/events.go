package pipeline

import (
	"time"

	"captionizer/internal/services"
)

// Events receives batch notifications from a supervisor. Calls are made from
// the supervisor goroutine, one at a time.
type Events interface {
	OnLocked(locked bool)
	OnProgress(label string, percent int)
	OnItemError(label string, err error)
	OnFinished(result BatchResult)
}

// JobObserver is implemented by Events values that also want per-job reports.
type JobObserver interface {
	OnJobStarted(report JobReport)
	OnJobFinished(report JobReport)
}

// JobReport describes one job of a batch.
type JobReport struct {
	BatchID    string
	Workflow   string
	Index      int
	Source     string
	RequestID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Outputs    []string
	Err        error
	Kind       services.Kind
	Cancelled  bool
}

// Outcome returns completed, cancelled, or skipped.
func (r JobReport) Outcome() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.Err != nil:
		return "skipped"
	default:
		return "completed"
	}
}

// Skip is a job that ended with an error.
type Skip struct {
	Source string
	Err    error
	Kind   services.Kind
}

// BatchResult accumulates the outcome of a batch. Sources and Artifacts only
// grow while the batch runs.
type BatchResult struct {
	ID         string
	Workflow   string
	Sources    []string
	Artifacts  []string
	Skipped    []Skip
	Cancelled  []string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Total reports how many jobs the batch accounted for.
func (r BatchResult) Total() int {
	return len(r.Sources) + len(r.Skipped) + len(r.Cancelled)
}

// Halted reports whether a transient failure stopped the batch early.
func (r BatchResult) Halted() bool {
	return r.Err != nil && services.Classify(r.Err) == services.KindTransientNetwork
}

// WasCancelled reports whether the batch was cancelled.
func (r BatchResult) WasCancelled() bool {
	return r.Err != nil && services.Classify(r.Err) == services.KindCancelled
}

// Duration is the wall time of the batch.
func (r BatchResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// EventFuncs adapts plain functions to Events. Nil fields are skipped.
type EventFuncs struct {
	Locked      func(locked bool)
	Progress    func(label string, percent int)
	ItemError   func(label string, err error)
	Finished    func(result BatchResult)
	JobStarted  func(report JobReport)
	JobFinished func(report JobReport)
}

func (f EventFuncs) OnLocked(locked bool) {
	if f.Locked != nil {
		f.Locked(locked)
	}
}

func (f EventFuncs) OnProgress(label string, percent int) {
	if f.Progress != nil {
		f.Progress(label, percent)
	}
}

func (f EventFuncs) OnItemError(label string, err error) {
	if f.ItemError != nil {
		f.ItemError(label, err)
	}
}

func (f EventFuncs) OnFinished(result BatchResult) {
	if f.Finished != nil {
		f.Finished(result)
	}
}

func (f EventFuncs) OnJobStarted(report JobReport) {
	if f.JobStarted != nil {
		f.JobStarted(report)
	}
}

func (f EventFuncs) OnJobFinished(report JobReport) {
	if f.JobFinished != nil {
		f.JobFinished(report)
	}
}

// MultiEvents fans every notification out to each member in order.
type MultiEvents []Events

func (m MultiEvents) OnLocked(locked bool) {
	for _, e := range m {
		if e != nil {
			e.OnLocked(locked)
		}
	}
}

func (m MultiEvents) OnProgress(label string, percent int) {
	for _, e := range m {
		if e != nil {
			e.OnProgress(label, percent)
		}
	}
}

func (m MultiEvents) OnItemError(label string, err error) {
	for _, e := range m {
		if e != nil {
			e.OnItemError(label, err)
		}
	}
}

func (m MultiEvents) OnFinished(result BatchResult) {
	for _, e := range m {
		if e != nil {
			e.OnFinished(result)
		}
	}
}

func (m MultiEvents) OnJobStarted(report JobReport) {
	for _, e := range m {
		if obs, ok := e.(JobObserver); ok {
			obs.OnJobStarted(report)
		}
	}
}

func (m MultiEvents) OnJobFinished(report JobReport) {
	for _, e := range m {
		if obs, ok := e.(JobObserver); ok {
			obs.OnJobFinished(report)
		}
	}
}

type noopEvents struct{}

func (noopEvents) OnLocked(bool)             {}
func (noopEvents) OnProgress(string, int)    {}
func (noopEvents) OnItemError(string, error) {}
func (noopEvents) OnFinished(BatchResult)    {}
