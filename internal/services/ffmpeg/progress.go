package ffmpeg

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// progressWriter consumes `-progress pipe:1` key=value output.
type progressWriter struct {
	duration time.Duration
	report   func(float64)
	pending  []byte
	last     float64
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		w.handle(string(w.pending[:idx]))
		w.pending = w.pending[idx+1:]
	}
	return len(p), nil
}

func (w *progressWriter) flush() {
	if len(w.pending) > 0 {
		w.handle(string(w.pending))
		w.pending = nil
	}
}

func (w *progressWriter) handle(line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || w.report == nil || w.duration <= 0 {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports out_time_ms in microseconds as well.
		us, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || us < 0 {
			return
		}
		w.emit(float64(time.Duration(us)*time.Microsecond) / float64(w.duration))
	case "progress":
		if value == "end" {
			w.emit(1)
		}
	}
}

func (w *progressWriter) emit(fraction float64) {
	if fraction > 1 {
		fraction = 1
	}
	if fraction <= w.last {
		return
	}
	w.last = fraction
	w.report(fraction)
}
