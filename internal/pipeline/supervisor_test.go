package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"captionizer/internal/services"
)

type testJob struct {
	path string
}

func (j testJob) Source() string { return j.path }

type progressEvent struct {
	label   string
	percent int
}

type recorder struct {
	mu         sync.Mutex
	locked     []bool
	progress   []progressEvent
	itemErrors map[string]error
	finished   []BatchResult
	started    []JobReport
	reports    []JobReport
}

func newRecorder() *recorder {
	return &recorder{itemErrors: make(map[string]error)}
}

func (r *recorder) OnLocked(locked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = append(r.locked, locked)
}

func (r *recorder) OnProgress(label string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, progressEvent{label, percent})
}

func (r *recorder) OnItemError(label string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.itemErrors[label] = err
}

func (r *recorder) OnFinished(result BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, result)
}

func (r *recorder) OnJobStarted(report JobReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, report)
}

func (r *recorder) OnJobFinished(report JobReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	last := 0
	for i, ev := range r.progress {
		if ev.percent < last {
			t.Fatalf("progress decreased at event %d: %d after %d (%v)", i, ev.percent, last, r.progress)
		}
		if ev.percent > 100 {
			t.Fatalf("progress above 100: %v", ev)
		}
		last = ev.percent
	}
}

func (r *recorder) lastProgress() progressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.progress) == 0 {
		return progressEvent{}
	}
	return r.progress[len(r.progress)-1]
}

// stepUnit walks through a fixed number of steps and writes one artifact on success.
type stepUnit struct {
	*Tracker
	job           testJob
	dir           string
	steps         int
	err           error
	estimated     bool
	panics        bool
	started       chan struct{}
	release       chan struct{}
	waitForCancel bool
	interrupted   atomic.Bool
}

func (u *stepUnit) Run(ctx context.Context) {
	u.SetPhase(PhaseConverting)
	u.SetEstimated(u.estimated)
	if u.panics {
		panic("codec exploded")
	}
	if u.started != nil {
		close(u.started)
	}
	if u.release != nil {
		select {
		case <-u.release:
		case <-ctx.Done():
			u.interrupted.Store(true)
		}
	}
	if u.waitForCancel {
		deadline := time.Now().Add(5 * time.Second)
		for !u.CancelRequested() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}
	for i := 0; i < u.steps; i++ {
		if u.CancelRequested() {
			u.MarkCancelled()
			return
		}
		time.Sleep(2 * time.Millisecond)
		if !u.estimated {
			u.SetProgress(float64(i+1) / float64(u.steps))
		}
	}
	if u.CancelRequested() {
		u.MarkCancelled()
		return
	}
	if u.err != nil {
		u.Fail(u.err)
		return
	}
	out := filepath.Join(u.dir, filepath.Base(u.job.path)+".out")
	if err := os.WriteFile(out, []byte("ok"), 0o644); err != nil {
		u.Fail(err)
		return
	}
	u.Complete(out)
}

func newTestSupervisor(rec *recorder, factory Factory[testJob, *stepUnit]) *Supervisor[testJob, *stepUnit] {
	return New("convert", factory,
		WithTick(time.Millisecond),
		WithPopTimeout(5*time.Millisecond),
		WithEvents(rec),
		WithRandom(rand.New(rand.NewPCG(3, 4))),
	)
}

func waitResult(t *testing.T, h *Handle[testJob]) BatchResult {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("batch did not finish")
	}
	return h.Wait()
}

func TestSupervisorAccountsForEveryJob(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		u := &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 3}
		if job.path == "missing.mp3" {
			u.err = services.Wrap(services.ErrNotFound, "convert", "open", job.path, nil)
		}
		return u, nil
	})

	jobs := []testJob{{"a.mp3"}, {"missing.mp3"}, {"c.mp3"}}
	h, err := sup.Start(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result := waitResult(t, h)

	if len(result.Sources)+len(rec.itemErrors) != len(jobs) {
		t.Fatalf("accounting mismatch: sources=%v errors=%v", result.Sources, rec.itemErrors)
	}
	if len(result.Sources) != 2 || result.Sources[0] != "a.mp3" || result.Sources[1] != "c.mp3" {
		t.Fatalf("sources = %v", result.Sources)
	}
	if len(result.Artifacts) != 2 {
		t.Fatalf("artifacts = %v", result.Artifacts)
	}
	if !errors.Is(rec.itemErrors["missing.mp3"], services.ErrNotFound) {
		t.Fatalf("item error = %v", rec.itemErrors["missing.mp3"])
	}
	if result.Err != nil || result.Total() != 3 {
		t.Fatalf("result err=%v total=%d", result.Err, result.Total())
	}

	rec.assertMonotonic(t)
	if first := rec.progress[0]; first.label != LabelStarting || first.percent != 1 {
		t.Fatalf("first progress = %+v", first)
	}
	if last := rec.lastProgress(); last.label != LabelCompleted || last.percent != 100 {
		t.Fatalf("last progress = %+v", last)
	}
	if len(rec.locked) != 2 || !rec.locked[0] || rec.locked[1] {
		t.Fatalf("locked events = %v", rec.locked)
	}
	if len(rec.finished) != 1 || rec.finished[0].ID != h.ID() {
		t.Fatalf("finished = %+v", rec.finished)
	}
	if len(rec.started) != 3 || len(rec.reports) != 3 {
		t.Fatalf("job reports started=%d finished=%d", len(rec.started), len(rec.reports))
	}
	for i, report := range rec.reports {
		if report.Index != i+1 || report.Source != jobs[i].path {
			t.Fatalf("report %d = %+v", i, report)
		}
	}
	if rec.reports[1].Outcome() != "skipped" || rec.reports[1].Kind != services.KindNotFound {
		t.Fatalf("report for missing file = %+v", rec.reports[1])
	}
	if sup.Running() {
		t.Fatal("supervisor still marked running")
	}
}

func TestSupervisorCancelInFlightWritesNothing(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	started := make(chan struct{})
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		u := &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 2}
		if job.path == "first.wav" {
			u.started = started
			u.waitForCancel = true
		}
		return u, nil
	})

	h, err := sup.Start(context.Background(), []testJob{{"first.wav"}, {"second.wav"}, {"third.wav"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	h.Cancel()
	h.Cancel()
	result := waitResult(t, h)

	if len(result.Sources) != 0 || len(result.Artifacts) != 0 {
		t.Fatalf("cancelled batch produced %v / %v", result.Sources, result.Artifacts)
	}
	if len(result.Cancelled) != 3 || result.Cancelled[0] != "first.wav" {
		t.Fatalf("cancelled = %v", result.Cancelled)
	}
	if len(rec.itemErrors) != 0 {
		t.Fatalf("cancellation must not be an item error: %v", rec.itemErrors)
	}
	if !result.WasCancelled() {
		t.Fatalf("expected cancelled batch, err=%v", result.Err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts, found %d", len(entries))
	}
	rec.assertMonotonic(t)
	if last := rec.lastProgress(); last.label != LabelCancelled || last.percent != 100 {
		t.Fatalf("last progress = %+v", last)
	}
}

func TestSupervisorParentContextCancelsAfterInFlightStep(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	started := make(chan struct{})
	release := make(chan struct{})
	var unit *stepUnit
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		unit = &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1, started: started, release: release}
		return unit, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	h, err := sup.Start(ctx, []testJob{{"only.txt"}, {"next.txt"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for !unit.CancelRequested() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !unit.CancelRequested() {
		t.Fatal("parent cancellation was not forwarded to the unit")
	}
	select {
	case <-h.Done():
		t.Fatal("batch finished while the unit was still inside its step")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	result := waitResult(t, h)
	if unit.interrupted.Load() {
		t.Fatal("in-flight step observed the parent cancellation")
	}
	if len(result.Cancelled) != 2 || len(result.Sources) != 0 {
		t.Fatalf("result = %+v", result)
	}
}

func TestSupervisorTransientErrorHaltsBatch(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		u := &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1}
		if job.path == "b.txt" {
			u.err = services.Wrap(services.ErrTransient, "translate", "line 2", "request timed out", nil)
		}
		return u, nil
	})

	h, err := sup.Start(context.Background(), []testJob{{"a.txt"}, {"b.txt"}, {"c.txt"}, {"d.txt"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result := waitResult(t, h)

	if len(result.Sources) != 1 || result.Sources[0] != "a.txt" {
		t.Fatalf("sources = %v", result.Sources)
	}
	if len(result.Sources)+len(rec.itemErrors) != 4 {
		t.Fatalf("accounting mismatch: %v %v", result.Sources, rec.itemErrors)
	}
	if services.Classify(rec.itemErrors["b.txt"]) != services.KindTransientNetwork {
		t.Fatalf("b.txt error = %v", rec.itemErrors["b.txt"])
	}
	for _, src := range []string{"c.txt", "d.txt"} {
		if !errors.Is(rec.itemErrors[src], services.ErrBatchHalted) {
			t.Fatalf("%s error = %v", src, rec.itemErrors[src])
		}
	}
	if !result.Halted() {
		t.Fatalf("expected halted batch, err=%v", result.Err)
	}
	if last := rec.lastProgress(); last.label != LabelStopped || last.percent != 100 {
		t.Fatalf("last progress = %+v", last)
	}
}

func TestSupervisorSynthesizesEstimatedProgress(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		return &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 15, estimated: true}, nil
	})
	h, err := sup.Start(context.Background(), []testJob{{"song.flac"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitResult(t, h)

	rec.assertMonotonic(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var sawIntermediate bool
	for _, ev := range rec.progress[:len(rec.progress)-1] {
		if ev.percent >= 100 {
			t.Fatalf("progress reached 100 before completion: %v", rec.progress)
		}
		if ev.label == "song.flac" && ev.percent > 1 {
			sawIntermediate = true
		}
	}
	if !sawIntermediate {
		t.Fatalf("expected synthesized intermediate progress, got %v", rec.progress)
	}
}

func TestSupervisorRecoversPanicsAndContinues(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		return &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1, panics: job.path == "bad.mp4"}, nil
	})
	h, err := sup.Start(context.Background(), []testJob{{"bad.mp4"}, {"good.mp4"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result := waitResult(t, h)
	if len(result.Sources) != 1 || result.Sources[0] != "good.mp4" {
		t.Fatalf("sources = %v", result.Sources)
	}
	if services.Classify(rec.itemErrors["bad.mp4"]) != services.KindUnexpected {
		t.Fatalf("panic error = %v", rec.itemErrors["bad.mp4"])
	}
}

func TestSupervisorFactoryErrorSkipsJob(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		if job.path == "clip.xyz" {
			return nil, services.Wrap(services.ErrUnsupportedFormat, "convert", "detect", ".xyz", nil)
		}
		return &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1}, nil
	})
	h, err := sup.Start(context.Background(), []testJob{{"clip.xyz"}, {"clip.wav"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result := waitResult(t, h)
	if len(result.Skipped) != 1 || result.Skipped[0].Kind != services.KindUnsupportedFormat {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("sources = %v", result.Sources)
	}
}

func TestSupervisorStartGuards(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	started := make(chan struct{})
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		return &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1, started: started, waitForCancel: true}, nil
	})
	if _, err := sup.Start(context.Background(), nil); !errors.Is(err, ErrNoJobs) {
		t.Fatalf("expected ErrNoJobs, got %v", err)
	}
	h, err := sup.Start(context.Background(), []testJob{{"one.wav"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if _, err := sup.Start(context.Background(), []testJob{{"two.wav"}}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	h.Cancel()
	waitResult(t, h)
	if err := h.Enqueue(testJob{"late.wav"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after finish, got %v", err)
	}
}

func TestSupervisorEnqueueWhileRunning(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	release := make(chan struct{})
	started := make(chan struct{})
	sup := newTestSupervisor(rec, func(_ context.Context, job testJob) (*stepUnit, error) {
		u := &stepUnit{Tracker: NewTracker(), job: job, dir: dir, steps: 1}
		if job.path == "first.srt" {
			u.started = started
			u.release = release
		}
		return u, nil
	})
	h, err := sup.Start(context.Background(), []testJob{{"first.srt"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started
	if err := h.Enqueue(testJob{"second.srt"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	close(release)
	result := waitResult(t, h)
	if len(result.Sources) != 2 || result.Sources[1] != "second.srt" {
		t.Fatalf("sources = %v", result.Sources)
	}
	rec.assertMonotonic(t)
}
