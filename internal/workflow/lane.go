package workflow

import (
	"sync"

	"captionizer/internal/pipeline"
)

// lane pairs a workflow's supervisor with the relay it reports through. The
// supervisor is built once; each batch swaps the relay's target and id.
type lane[J pipeline.Job, U pipeline.Unit] struct {
	name  string
	sup   *pipeline.Supervisor[J, U]
	relay *relay
}

func newLane[J pipeline.Job, U pipeline.Unit](name string, factory pipeline.Factory[J, U], opts ...pipeline.Option) *lane[J, U] {
	r := &relay{}
	opts = append(opts, pipeline.WithEvents(r), pipeline.WithBatchID(r.batchID))
	return &lane[J, U]{
		name:  name,
		sup:   pipeline.New(name, factory, opts...),
		relay: r,
	}
}

// relay forwards supervisor events to the current batch's receivers.
type relay struct {
	mu     sync.Mutex
	id     string
	target pipeline.Events
}

func (r *relay) set(id string, target pipeline.Events) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.id = id
	r.target = target
}

func (r *relay) batchID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *relay) current() pipeline.Events {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.target == nil {
		return pipeline.EventFuncs{}
	}
	return r.target
}

func (r *relay) OnLocked(locked bool)                { r.current().OnLocked(locked) }
func (r *relay) OnProgress(label string, percent int) { r.current().OnProgress(label, percent) }
func (r *relay) OnItemError(label string, err error)  { r.current().OnItemError(label, err) }
func (r *relay) OnFinished(result pipeline.BatchResult) {
	r.current().OnFinished(result)
}

func (r *relay) OnJobStarted(report pipeline.JobReport) {
	if obs, ok := r.current().(pipeline.JobObserver); ok {
		obs.OnJobStarted(report)
	}
}

func (r *relay) OnJobFinished(report pipeline.JobReport) {
	if obs, ok := r.current().(pipeline.JobObserver); ok {
		obs.OnJobFinished(report)
	}
}
