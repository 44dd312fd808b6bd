package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"captionizer/internal/logging"
	"captionizer/internal/services"
)

var (
	// ErrBusy is returned by Start while a previous batch is still running.
	ErrBusy = errors.New("supervisor already running a batch")
	// ErrNoJobs is returned by Start for an empty batch.
	ErrNoJobs = errors.New("no jobs to process")
)

const (
	LabelStarting  = "Starting..."
	LabelCompleted = "Completed!"
	LabelCancelled = "Cancelled!"
	LabelStopped   = "Stopped!"

	defaultTick       = time.Second
	defaultPopTimeout = time.Second
)

type options struct {
	tick       time.Duration
	popTimeout time.Duration
	logger     *slog.Logger
	events     Events
	capacity   int
	rng        *rand.Rand
	batchID    func() string
}

// Option configures a Supervisor.
type Option func(*options)

// WithTick sets how often the in-flight unit is polled.
func WithTick(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.tick = d
		}
	}
}

// WithPopTimeout bounds each blocking dequeue.
func WithPopTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.popTimeout = d
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEvents sets the batch event receiver.
func WithEvents(events Events) Option {
	return func(o *options) {
		if events != nil {
			o.events = events
		}
	}
}

// WithQueueCapacity bounds the number of waiting jobs.
func WithQueueCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithRandom sets the source used for synthesized progress. The source is
// only touched from the supervisor goroutine.
func WithRandom(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithBatchID replaces the batch identifier generator.
func WithBatchID(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.batchID = fn
		}
	}
}

// Supervisor feeds jobs through units one at a time, polls the in-flight unit
// on a fixed tick, and reports aggregate progress and outcomes through Events.
// One Supervisor runs at most one batch at a time.
type Supervisor[J Job, U Unit] struct {
	name    string
	factory Factory[J, U]
	opts    options

	mu      sync.Mutex
	running bool
}

// New returns a supervisor for the named workflow.
func New[J Job, U Unit](name string, factory Factory[J, U], opts ...Option) *Supervisor[J, U] {
	o := options{
		tick:       defaultTick,
		popTimeout: defaultPopTimeout,
		logger:     logging.NewNop(),
		events:     noopEvents{},
		batchID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "supervisor")
	return &Supervisor[J, U]{name: name, factory: factory, opts: o}
}

// Name returns the workflow name.
func (s *Supervisor[J, U]) Name() string {
	return s.name
}

// Running reports whether a batch is in progress.
func (s *Supervisor[J, U]) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start enqueues jobs and begins processing them in the background.
func (s *Supervisor[J, U]) Start(ctx context.Context, jobs []J) (*Handle[J], error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	queue := NewJobQueue[J](s.opts.capacity)
	for _, job := range jobs {
		if err := queue.Push(job); err != nil {
			s.release()
			return nil, fmt.Errorf("enqueue %s: %w", job.Source(), err)
		}
	}

	h := &Handle[J]{
		id:       s.opts.batchID(),
		queue:    queue,
		cancelCh: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run(ctx, h)
	return h, nil
}

func (s *Supervisor[J, U]) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Supervisor[J, U]) run(parent context.Context, h *Handle[J]) {
	defer close(h.done)
	defer s.release()

	ctx := services.WithBatchID(services.WithWorkflow(parent, s.name), h.id)
	logger := logging.WithContext(ctx, s.opts.logger)
	observer, _ := s.opts.events.(JobObserver)

	run := &batchRun{
		events:   s.opts.events,
		observer: observer,
		sampler:  logging.NewProgressSampler(10),
		total:    h.queue.Total,
		result: BatchResult{
			ID:        h.id,
			Workflow:  s.name,
			StartedAt: time.Now(),
		},
	}

	run.events.OnLocked(true)
	run.emit(LabelStarting, 1)
	logger.Info("batch started",
		logging.String(logging.FieldEventType, "batch_start"),
		logging.Int("jobs", h.queue.Total()),
	)

	var (
		haltErr   error
		cancelled bool
		index     int
	)
	for {
		if h.cancelRequested() || ctx.Err() != nil {
			cancelled = true
			break
		}
		if haltErr != nil {
			break
		}
		job, ok := h.queue.Pop(ctx, s.opts.popTimeout)
		if !ok {
			if ctx.Err() == nil && h.queue.CloseIfEmpty() {
				break
			}
			continue
		}
		index++
		report := s.runJob(ctx, h, run, index, job)
		h.queue.Done()
		if report.Cancelled {
			cancelled = true
		}
		if report.Kind.Halts() {
			haltErr = report.Err
		}
	}

	label := LabelCompleted
	switch {
	case cancelled:
		label = LabelCancelled
		run.result.Err = services.Wrap(services.ErrCancelled, s.name, "batch", "cancelled by request", nil)
		for _, job := range h.queue.Drain() {
			index++
			run.finishJob(logger, JobReport{
				BatchID:   h.id,
				Workflow:  s.name,
				Index:     index,
				Source:    job.Source(),
				Cancelled: true,
			})
			h.queue.Done()
		}
	case haltErr != nil:
		label = LabelStopped
		run.result.Err = haltErr
		for _, job := range h.queue.Drain() {
			index++
			run.finishJob(logger, JobReport{
				BatchID:  h.id,
				Workflow: s.name,
				Index:    index,
				Source:   job.Source(),
				Err:      services.Wrap(services.ErrBatchHalted, s.name, "dequeue", "stopped after a connection error", nil),
			})
			h.queue.Done()
		}
	}

	run.result.FinishedAt = time.Now()
	run.emit(label, 100)
	logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.String("outcome", label),
		logging.Int("completed", len(run.result.Sources)),
		logging.Int("skipped", len(run.result.Skipped)),
		logging.Int("cancelled", len(run.result.Cancelled)),
		logging.Int("artifacts", len(run.result.Artifacts)),
		logging.Duration("duration", run.result.Duration()),
	)
	h.result = run.result
	run.events.OnFinished(run.result)
	run.events.OnLocked(false)
}

func (s *Supervisor[J, U]) runJob(ctx context.Context, h *Handle[J], run *batchRun, index int, job J) JobReport {
	source := job.Source()
	requestID := uuid.NewString()
	jobCtx := services.WithRequestID(services.WithJobIndex(ctx, index), requestID)
	jobLogger := logging.WithContext(jobCtx, s.opts.logger)
	logger := jobLogger.With(logging.String(logging.FieldSource, source))

	report := JobReport{
		BatchID:   h.id,
		Workflow:  s.name,
		Index:     index,
		Source:    source,
		RequestID: requestID,
		StartedAt: time.Now(),
	}
	if run.observer != nil {
		run.observer.OnJobStarted(report)
	}
	logger.Info("job started", logging.String(logging.FieldEventType, "job_start"))
	run.sampler.Reset()
	run.emit(source, run.percentFor(0))

	// Units never observe the parent's cancellation directly. It reaches them
	// through Cancel, after which the in-flight step runs to completion.
	unitCtx := context.WithoutCancel(jobCtx)
	unit, err := s.factory(unitCtx, job)
	if err != nil {
		report.Err = err
		return run.finishJob(jobLogger, report)
	}

	state, panicErr := s.supervise(jobCtx, unitCtx, h, run, logger, unit, source)
	switch {
	case panicErr != nil:
		report.Err = panicErr
	case state.Cancelled:
		report.Cancelled = true
	case state.Err != nil:
		report.Err = state.Err
	case state.Completed:
		report.Outputs = state.Outputs
	default:
		report.Err = fmt.Errorf("%s unit returned in phase %q without finishing", s.name, state.Phase)
	}
	if report.Err != nil && services.Classify(report.Err) == services.KindCancelled {
		report.Cancelled = true
		report.Err = nil
	}
	return run.finishJob(jobLogger, report)
}

// supervise runs unit on a worker goroutine and polls it every tick until
// Run returns. A batch cancel or the end of ctx is forwarded to the unit and
// then waited out.
func (s *Supervisor[J, U]) supervise(ctx, unitCtx context.Context, h *Handle[J], run *batchRun, logger *slog.Logger, unit U, source string) (State, error) {
	done := make(chan struct{})
	var recovered error
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				recovered = fmt.Errorf("%s unit panicked: %v", s.name, r)
			}
		}()
		unit.Run(unitCtx)
	}()

	ticker := time.NewTicker(s.opts.tick)
	defer ticker.Stop()
	synth := NewSynthesizer(s.opts.rng)
	cancelCh := h.cancelCh
	ctxDone := ctx.Done()
	forwardCancel := func(reason string) {
		cancelCh, ctxDone = nil, nil
		unit.Cancel()
		logger.Info("cancel requested; waiting for the current step to finish",
			logging.String(logging.FieldEventType, "job_cancel_requested"),
			logging.String("reason", reason),
		)
	}

	for {
		select {
		case <-done:
			return unit.State(), recovered
		case <-cancelCh:
			forwardCancel("batch cancelled")
		case <-ctxDone:
			forwardCancel("context done")
		case <-ticker.C:
			p := unit.Poll()
			fraction := p.Fraction
			if p.Estimated {
				fraction = math.Max(fraction, synth.Next())
			}
			run.emit(source, run.percentFor(fraction))
			if run.sampler.ShouldLog(fraction*100, string(unit.State().Phase)) {
				logger.Debug("job progress",
					logging.String(logging.FieldEventType, "job_progress"),
					logging.Float64("percent", math.Round(fraction*1000)/10),
					logging.Bool("estimated", p.Estimated),
				)
			}
		}
	}
}

// batchRun is the supervisor goroutine's bookkeeping for one batch.
type batchRun struct {
	events   Events
	observer JobObserver
	sampler  *logging.ProgressSampler
	total    func() int
	result   BatchResult

	finished int
	percent  int
	label    string
}

// percentFor maps the in-flight job's fraction onto the whole batch. It stays
// below 100 until the batch ends.
func (r *batchRun) percentFor(fraction float64) int {
	total := r.total()
	if total <= 0 {
		return r.percent
	}
	fraction = math.Min(math.Max(fraction, 0), 1)
	pct := int(math.Round((float64(r.finished) + fraction) / float64(total) * 100))
	return min(pct, 99)
}

// emit forwards progress, never letting the percentage fall.
func (r *batchRun) emit(label string, percent int) {
	percent = max(percent, r.percent)
	if percent == r.percent && label == r.label {
		return
	}
	r.percent, r.label = percent, label
	r.events.OnProgress(label, percent)
}

func (r *batchRun) finishJob(logger *slog.Logger, report JobReport) JobReport {
	r.finished++
	if report.FinishedAt.IsZero() {
		report.FinishedAt = time.Now()
	}
	report.Kind = services.Classify(report.Err)
	logger = logger.With(logging.String(logging.FieldSource, report.Source))

	switch {
	case report.Cancelled:
		r.result.Cancelled = append(r.result.Cancelled, report.Source)
		logger.Info("job cancelled", logging.String(logging.FieldEventType, "job_cancelled"))
	case report.Err != nil:
		r.result.Skipped = append(r.result.Skipped, Skip{Source: report.Source, Err: report.Err, Kind: report.Kind})
		attrs := []logging.Attr{
			logging.Error(report.Err),
			logging.String(logging.FieldErrorKind, string(report.Kind)),
			logging.String(logging.FieldErrorHint, report.Kind.Hint()),
		}
		if report.Kind == services.KindUnexpected {
			logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
		} else {
			logging.WarnWithContext(logger, "job skipped", "job_skipped", attrs...)
		}
		r.events.OnItemError(report.Source, report.Err)
	default:
		r.result.Sources = append(r.result.Sources, report.Source)
		r.result.Artifacts = append(r.result.Artifacts, report.Outputs...)
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.Int("artifacts", len(report.Outputs)),
			logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		)
	}
	if r.observer != nil {
		r.observer.OnJobFinished(report)
	}
	return report
}

// Handle controls one running batch.
type Handle[J Job] struct {
	id         string
	queue      *JobQueue[J]
	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
	result     BatchResult
}

// ID returns the batch identifier.
func (h *Handle[J]) ID() string {
	return h.id
}

// Enqueue appends a job to the running batch. It fails once the batch has
// drained its queue.
func (h *Handle[J]) Enqueue(job J) error {
	return h.queue.Push(job)
}

// Cancel stops the batch: the in-flight unit is asked to stop and no further
// jobs are dequeued. It is safe to call more than once.
func (h *Handle[J]) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancelCh) })
}

func (h *Handle[J]) cancelRequested() bool {
	select {
	case <-h.cancelCh:
		return true
	default:
		return false
	}
}

// Done is closed when the batch has finished.
func (h *Handle[J]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the batch finishes and returns its result.
func (h *Handle[J]) Wait() BatchResult {
	<-h.done
	return h.result
}
