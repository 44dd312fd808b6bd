package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"captionizer/internal/config"
	"captionizer/internal/history"
	"captionizer/internal/media/ffprobe"
	"captionizer/internal/pipeline"
	"captionizer/internal/services"
	"captionizer/internal/services/ffmpeg"
	"captionizer/internal/services/llm"
	"captionizer/internal/transcribe"
	"captionizer/internal/translate"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ImportDir = filepath.Join(base, "imports")
	cfg.Paths.TempDir = filepath.Join(base, "temp")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.HistoryPath = filepath.Join(base, "history.db")
	cfg.Workflow.PollIntervalMS = 1
	cfg.Workflow.DequeueTimeoutMS = 1
	cfg.Translation.Provider = "identity"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &cfg
}

type notifyCall struct {
	kind   string
	source string
	result pipeline.BatchResult
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (f *fakeNotifier) NotifyItemError(_ context.Context, _ string, source string, _ error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{kind: "item", source: source})
	return nil
}

func (f *fakeNotifier) NotifyBatchFinished(_ context.Context, result pipeline.BatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{kind: "batch", result: result})
	return nil
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

type fakeConverter struct{}

func (fakeConverter) ToWAV(_ context.Context, _, dest string, _ ffmpeg.ConvertOptions) error {
	return os.WriteFile(dest, []byte("RIFF"), 0o644)
}

type fakeProber struct{}

func (fakeProber) Inspect(context.Context, string) (ffprobe.Result, error) {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio", CodecName: "pcm_s16le", SampleRate: "16000"}},
		Format:  ffprobe.Format{FormatName: "wav"},
	}, nil
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestManagerTranslateBatch(t *testing.T) {
	cfg := testConfig(t)
	store, err := history.Open(cfg.Paths.HistoryPath)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	notifier := &fakeNotifier{}

	m, err := NewManager(cfg, nil, WithRecorder(store), WithNotifier(notifier))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	src := t.TempDir()
	out := t.TempDir()
	paths := []string{
		writeFile(t, filepath.Join(src, "one.txt"), "Hello\n\nWorld\n"),
		writeFile(t, filepath.Join(src, "notes.doc"), "ignored"),
		writeFile(t, filepath.Join(src, "two.txt"), "Again"),
	}

	var finished []pipeline.JobReport
	var mu sync.Mutex
	events := pipeline.EventFuncs{JobFinished: func(r pipeline.JobReport) {
		mu.Lock()
		defer mu.Unlock()
		finished = append(finished, r)
	}}

	h, err := m.StartTranslate(context.Background(), m.TranslateJobs(paths, out, "", ""), events)
	if err != nil {
		t.Fatalf("StartTranslate: %v", err)
	}
	result := h.Wait()

	if len(result.Sources) != 2 || len(result.Skipped) != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.Skipped[0].Kind != services.KindUnsupportedFormat {
		t.Fatalf("skip kind = %s", result.Skipped[0].Kind)
	}
	got, err := os.ReadFile(filepath.Join(out, "one_English.txt"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "Hello\n\nWorld\n" {
		t.Fatalf("output = %q", got)
	}
	mu.Lock()
	if len(finished) != 3 {
		t.Fatalf("caller saw %d job reports, want 3", len(finished))
	}
	mu.Unlock()

	batch, jobs, err := store.GetBatch(context.Background(), h.ID())
	if err != nil {
		t.Fatalf("GetBatch: %v", err)
	}
	if batch.Status != history.StatusPartial || batch.Completed != 2 || batch.Skipped != 1 || len(jobs) != 3 {
		t.Fatalf("history batch = %+v jobs=%d", batch, len(jobs))
	}

	notifier.mu.Lock()
	calls := append([]notifyCall(nil), notifier.calls...)
	notifier.mu.Unlock()
	if len(calls) != 2 || calls[0].kind != "item" || calls[0].source != paths[1] || calls[1].kind != "batch" {
		t.Fatalf("notifications = %+v", calls)
	}

	lock := flock.New(m.LockPath(Translate))
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock still held after batch: ok=%v err=%v", ok, err)
	}
	_ = lock.Unlock()
}

func TestManagerRejectsLockedWorkflow(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg, nil, WithCapabilities(Capabilities{Prober: fakeProber{}, Converter: fakeConverter{}}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	other := flock.New(m.LockPath(Convert))
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock failed: ok=%v err=%v", ok, err)
	}

	wav := writeFile(t, filepath.Join(t.TempDir(), "clip.wav"), "RIFF")
	_, err = m.StartConvert(context.Background(), m.ConvertJobs([]string{wav}, ""), nil)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	h, err := m.StartConvert(context.Background(), m.ConvertJobs([]string{wav}, ""), nil)
	if err != nil {
		t.Fatalf("StartConvert after unlock: %v", err)
	}
	result := h.Wait()
	if len(result.Sources) != 1 || len(result.Artifacts) != 1 || result.Artifacts[0] != wav {
		t.Fatalf("result = %+v", result)
	}

	logs, err := os.ReadDir(cfg.Paths.LogDir)
	if err != nil {
		t.Fatalf("read log dir: %v", err)
	}
	var runLog bool
	for _, entry := range logs {
		if strings.HasPrefix(entry.Name(), "log_") {
			runLog = true
		}
	}
	if !runLog {
		t.Fatalf("expected a run log in %s", cfg.Paths.LogDir)
	}
}

func TestManagerPreflightFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.ImportDir = filepath.Join(t.TempDir(), "missing")
	m, err := NewManager(cfg, nil, WithCapabilities(Capabilities{Prober: fakeProber{}, Converter: fakeConverter{}}))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	wav := writeFile(t, filepath.Join(t.TempDir(), "clip.wav"), "RIFF")
	_, err = m.StartConvert(context.Background(), m.ConvertJobs([]string{wav}, ""), nil)
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "Import directory") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if m.Busy(Convert) {
		t.Fatal("workflow should not be busy after a rejected start")
	}
}

func TestManagerStartValidation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.QueueCapacity = 1
	m, err := NewManager(cfg, nil, WithPreflight(nil))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := m.StartTranslate(context.Background(), nil, nil); !errors.Is(err, pipeline.ErrNoJobs) {
		t.Fatalf("empty batch: %v", err)
	}
	jobs := m.TranslateJobs([]string{"a.txt", "b.txt"}, "", "", "")
	if _, err := m.StartTranslate(context.Background(), jobs, nil); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("over capacity: %v", err)
	}
}

func TestTranscribeJobsDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.OutputDir = "/srv/captions"
	cfg.Transcription.Language = "ms"
	m, err := NewManager(cfg, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	jobs, err := m.TranscribeJobs([]string{"/a.wav"}, "", "", "")
	if err != nil {
		t.Fatalf("TranscribeJobs: %v", err)
	}
	want := transcribe.Job{Path: "/a.wav", OutputDir: "/srv/captions", Mode: transcribe.ModeSegmented, Language: "ms"}
	if jobs[0] != want {
		t.Fatalf("job = %+v, want %+v", jobs[0], want)
	}

	if _, err := m.TranscribeJobs([]string{"/a.wav"}, "", "chunked", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected invalid mode error, got %v", err)
	}

	converts := m.ConvertJobs([]string{"/b.mp3"}, "")
	if converts[0].DestDir != cfg.Paths.ImportDir {
		t.Fatalf("convert dest = %q", converts[0].DestDir)
	}
}

func TestCapabilitiesFromConfigTranslator(t *testing.T) {
	cfg := testConfig(t)
	if _, ok := CapabilitiesFromConfig(cfg).Translator.(translate.Identity); !ok {
		t.Fatal("identity provider should use translate.Identity")
	}
	cfg.Translation.Provider = "llm"
	if _, ok := CapabilitiesFromConfig(cfg).Translator.(*llm.Client); !ok {
		t.Fatal("llm provider should use the llm client")
	}
}
