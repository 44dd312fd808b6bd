package translate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"captionizer/internal/language"
	"captionizer/internal/pipeline"
	"captionizer/internal/runlog"
	"captionizer/internal/services"
)

type recordingTranslator struct {
	seen    []string
	sources []string
	targets []string
	err     error
	failAt  int
	onCall  func(n int)
}

func (r *recordingTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	r.seen = append(r.seen, text)
	r.sources = append(r.sources, source)
	r.targets = append(r.targets, target)
	if r.onCall != nil {
		r.onCall(len(r.seen))
	}
	if r.err != nil && len(r.seen) >= r.failAt {
		return "", r.err
	}
	return strings.ToUpper(text), nil
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func malay(t *testing.T) language.Language {
	t.Helper()
	lang, ok := language.Lookup("Malay")
	if !ok {
		t.Fatal("Malay missing from language table")
	}
	return lang
}

func TestSubtitleOnlyTranslatesCaptionText(t *testing.T) {
	src := writeSource(t, "episode.srt", strings.Join([]string{
		"1", "00:00:00,000 --> 00:00:01,000", "Hello", "",
		"2", "00:00:01,000 --> 00:00:02,000", "World",
	}, "\n"))
	out := t.TempDir()
	tr := &recordingTranslator{}
	unit := New(Job{Path: src, OutputDir: out, TargetLanguage: "ms"}, Deps{Translator: tr})

	unit.Run(context.Background())

	state := unit.State()
	if !state.Completed {
		t.Fatalf("state = %+v", state)
	}
	if !slices.Equal(tr.seen, []string{"Hello", "World"}) {
		t.Fatalf("translated lines = %q", tr.seen)
	}
	if tr.sources[0] != "auto" || tr.targets[0] != "Malay" {
		t.Fatalf("languages = %s -> %s", tr.sources[0], tr.targets[0])
	}
	want := filepath.Join(out, "episode_Malay.srt")
	if state.Outputs[0] != want {
		t.Fatalf("output = %s, want %s", state.Outputs[0], want)
	}
	data, _ := os.ReadFile(want)
	expected := "1\n00:00:00,000 --> 00:00:01,000\nHELLO\n\n2\n00:00:01,000 --> 00:00:02,000\nWORLD"
	if string(data) != expected {
		t.Fatalf("output = %q", data)
	}
}

func TestIdentityRoundTripIsByteExact(t *testing.T) {
	inputs := map[string]string{
		"crlf.srt":     "1\r\n00:00:00,000 --> 00:00:01,500\r\nHi there\r\n\r\n2\r\n00:00:01,500 --> 00:00:03,000\r\n42\r\n",
		"trailing.srt": "1\n00:00:00,000 --> 00:00:01,000\nLine one\nLine two\n\n",
		"notes.txt":    "first line\n\n  indented\nlast",
	}
	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			src := writeSource(t, name, content)
			unit := New(Job{Path: src, TargetLanguage: "English"}, Deps{Translator: Identity{}})
			unit.Run(context.Background())
			state := unit.State()
			if !state.Completed || len(state.Outputs) != 1 {
				t.Fatalf("state = %+v", state)
			}
			got, err := os.ReadFile(state.Outputs[0])
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != content {
				t.Fatalf("round trip changed bytes:\n got %q\nwant %q", got, content)
			}
		})
	}
}

func TestPlainTextSkipsBlankLines(t *testing.T) {
	src := writeSource(t, "notes.txt", "one\n\n   \ntwo")
	tr := &recordingTranslator{}
	logDir := t.TempDir()
	unit := New(Job{Path: src, SourceLanguage: "en", TargetLanguage: "malay"}, Deps{Translator: tr, RunLog: runlog.New(logDir)})

	unit.Run(context.Background())

	if !slices.Equal(tr.seen, []string{"one", "two"}) || tr.sources[0] != "English" {
		t.Fatalf("seen = %q sources = %q", tr.seen, tr.sources)
	}
	output := OutputPath(Job{Path: src}, malay(t))
	data, _ := os.ReadFile(output)
	if string(data) != "ONE\n\n   \nTWO" {
		t.Fatalf("output = %q", data)
	}
	entries, _ := os.ReadDir(logDir)
	logData, _ := os.ReadFile(filepath.Join(logDir, entries[0].Name()))
	for _, fragment := range []string{"----- Translation -----", "Source Language: en", "Language: ms", "Output: " + output} {
		if !strings.Contains(string(logData), fragment) {
			t.Fatalf("run log missing %q:\n%s", fragment, logData)
		}
	}
}

func TestProgressIsFractionOfLines(t *testing.T) {
	src := writeSource(t, "a.txt", "a\nb\nc\nd")
	var unit *Unit
	var seen []float64
	tr := &recordingTranslator{onCall: func(int) { seen = append(seen, unit.Poll().Fraction) }}
	unit = New(Job{Path: src, TargetLanguage: "ja"}, Deps{Translator: tr})

	unit.Run(context.Background())

	if !slices.Equal(seen, []float64{0, 0.25, 0.5, 0.75}) {
		t.Fatalf("progress before each line = %v", seen)
	}
	if unit.Poll().Fraction != 1 {
		t.Fatalf("final progress = %v", unit.Poll().Fraction)
	}
}

func TestCancelDiscardsPartialTranslation(t *testing.T) {
	src := writeSource(t, "a.txt", "a\nb\nc")
	var unit *Unit
	tr := &recordingTranslator{onCall: func(n int) {
		if n == 2 {
			unit.Cancel()
		}
	}}
	unit = New(Job{Path: src, TargetLanguage: "ja"}, Deps{Translator: tr})

	unit.Run(context.Background())

	state := unit.State()
	if !state.Cancelled || len(tr.seen) != 2 {
		t.Fatalf("state = %+v seen = %q", state, tr.seen)
	}
	if _, err := os.Stat(OutputPath(Job{Path: src}, language.Language{Code: "ja", Name: "Japanese"})); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("partial output written: %v", err)
	}
}

func TestTransientFailureIsAttached(t *testing.T) {
	src := writeSource(t, "a.srt", "1\n00:00:00,000 --> 00:00:01,000\nHello\n")
	transient := services.Wrap(services.ErrTransient, "llm", "translate", "dial", errors.New("connection refused"))
	unit := New(Job{Path: src, TargetLanguage: "ms"}, Deps{Translator: &recordingTranslator{err: transient, failAt: 1}})

	unit.Run(context.Background())

	state := unit.State()
	if state.Phase != pipeline.PhaseFailed || services.Classify(state.Err) != services.KindTransientNetwork {
		t.Fatalf("state = %+v", state)
	}
	if _, err := os.Stat(OutputPath(Job{Path: src}, malay(t))); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("failed translation should not write output")
	}
}

func TestEmptyAndBlankSources(t *testing.T) {
	for name, content := range map[string]string{"empty.txt": "", "blank.txt": "\n\n"} {
		t.Run(name, func(t *testing.T) {
			src := writeSource(t, name, content)
			tr := &recordingTranslator{}
			unit := New(Job{Path: src, TargetLanguage: "ms"}, Deps{Translator: tr})
			unit.Run(context.Background())
			state := unit.State()
			if !state.Completed || len(state.Outputs) != 0 || len(tr.seen) != 0 {
				t.Fatalf("state = %+v seen = %q", state, tr.seen)
			}
		})
	}
}

func TestRejections(t *testing.T) {
	tests := []struct {
		name string
		job  Job
		want error
	}{
		{name: "unsupported", job: Job{Path: writeSource(t, "a.docx", "x"), TargetLanguage: "ms"}, want: services.ErrUnsupportedFormat},
		{name: "missing", job: Job{Path: filepath.Join(t.TempDir(), "gone.txt"), TargetLanguage: "ms"}, want: services.ErrNotFound},
		{name: "auto target", job: Job{Path: writeSource(t, "a.txt", "x"), TargetLanguage: "auto"}, want: services.ErrValidation},
		{name: "bad source", job: Job{Path: writeSource(t, "b.txt", "x"), SourceLanguage: "klingonese", TargetLanguage: "ms"}, want: services.ErrValidation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			unit := New(tc.job, Deps{Translator: Identity{}})
			unit.Run(context.Background())
			if err := unit.State().Err; !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}

	_, err := NewFactory(Deps{Translator: Identity{}})(context.Background(), Job{Path: "a.txt", TargetLanguage: ""})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("factory err = %v", err)
	}
}
