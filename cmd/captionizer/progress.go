package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"captionizer/internal/logging"
	"captionizer/internal/pipeline"
	"captionizer/internal/services"
)

// batchView renders one batch's events. On a terminal it drives a progress
// bar; otherwise it prints a line per file and per 10% step.
type batchView struct {
	out      io.Writer
	mu       *sync.Mutex
	label    string
	colorize bool
	bar      *progressbar.ProgressBar
	sampler  *logging.ProgressSampler
}

func newBatchView(out io.Writer, mu *sync.Mutex, workflow string, interactive bool) *batchView {
	v := &batchView{
		out:      out,
		mu:       mu,
		label:    workflowTitle(workflow),
		colorize: shouldColorize(out),
		sampler:  logging.NewProgressSampler(10),
	}
	if interactive {
		v.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(v.label),
			progressbar.OptionSetWidth(30),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	return v
}

func (v *batchView) OnLocked(bool) {}

func (v *batchView) OnProgress(label string, percent int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	name := filepath.Base(label)
	if v.bar != nil {
		v.bar.Describe(fmt.Sprintf("%s %s", v.label, name))
		_ = v.bar.Set(percent)
		return
	}
	if v.sampler.ShouldLog(float64(percent), label) {
		fmt.Fprintf(v.out, "%s [%3d%%] %s\n", v.label, percent, name)
	}
}

func (v *batchView) OnItemError(label string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bar != nil {
		_ = v.bar.Clear()
	}
	title, message := services.Describe(err)
	kind := statusWarn
	if services.Classify(err) == services.KindUnexpected {
		kind = statusError
	}
	printLine(v.out, kind, v.colorize, "%s skipped %s: %s (%s)", v.label, filepath.Base(label), title, message)
}

func (v *batchView) OnFinished(result pipeline.BatchResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.bar != nil {
		_ = v.bar.Finish()
	}
	fmt.Fprintln(v.out, renderBatchSummary(v.label, result, v.colorize))
}

func renderBatchSummary(label string, result pipeline.BatchResult, colorize bool) string {
	title := fmt.Sprintf("%s: %d of %d completed in %s", label, len(result.Sources), result.Total(), result.Duration().Round(time.Millisecond))
	switch {
	case result.WasCancelled():
		title += " (cancelled)"
	case result.Halted():
		title += " (stopped after a connection error)"
	}

	rows := make([][]string, 0, result.Total())
	for _, source := range result.Sources {
		rows = append(rows, []string{statusCell(statusOK, colorize), source, ""})
	}
	for _, skip := range result.Skipped {
		errTitle, message := services.Describe(skip.Err)
		kind := statusWarn
		if skip.Kind == services.KindUnexpected {
			kind = statusError
		}
		rows = append(rows, []string{statusCell(kind, colorize), skip.Source, errTitle + ": " + message})
	}
	for _, source := range result.Cancelled {
		rows = append(rows, []string{statusCell(statusInfo, colorize), source, "Cancelled"})
	}
	out := renderTable(title, []string{"Status", "File", "Detail"}, rows, nil)
	if len(result.Artifacts) > 0 {
		artifacts := make([][]string, 0, len(result.Artifacts))
		for _, a := range result.Artifacts {
			artifacts = append(artifacts, []string{a})
		}
		out += "\n" + renderTable("", []string{"Output"}, artifacts, nil)
	}
	return out
}

func workflowTitle(workflow string) string {
	switch workflow {
	case "convert":
		return "Import"
	case "transcribe":
		return "Transcription"
	case "translate":
		return "Translation"
	default:
		return workflow
	}
}
