package pipeline

import "context"

// Job describes one work item. Implementations are treated as immutable once
// enqueued.
type Job interface {
	Source() string
}

// Unit is the per-job state machine a supervisor drives.
//
// Run executes on its own goroutine and returns once the unit reaches a
// terminal state. The supervisor polls Poll and State while Run is in flight
// and calls Cancel to raise the cooperative cancel flag; a unit observes the
// flag between steps and never mid-call.
type Unit interface {
	Run(ctx context.Context)
	Poll() Progress
	Cancel()
	State() State
}

// Factory builds the unit for one job. A factory error is reported as a
// skipped job.
type Factory[J Job, U Unit] func(ctx context.Context, job J) (U, error)
