// Package runlog appends human-readable outcome blocks to a daily log file.
//
// Each block looks like:
//
//	----- Title -----
//	Time: [Mon Jan  2 15:04:05 2006]
//	detail line
//	detail line
//
// Files are named log_YYMMDD.log and are never truncated.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Writer appends blocks to the daily file in Dir.
type Writer struct {
	Dir string
	Now func() time.Time

	mu sync.Mutex
}

// New returns a Writer rooted at dir.
func New(dir string) *Writer {
	return &Writer{Dir: dir}
}

// FileName returns the log file name for the given day.
func FileName(day time.Time) string {
	return "log_" + day.Format("060102") + ".log"
}

// Path returns the file a block written now would land in.
func (w *Writer) Path() string {
	return filepath.Join(w.Dir, FileName(w.now()))
}

// Write appends one block. Nil receivers are a no-op.
func (w *Writer) Write(title string, lines ...string) error {
	if w == nil || strings.TrimSpace(w.Dir) == "" {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("create run log dir: %w", err)
	}
	now := w.now()
	f, err := os.OpenFile(filepath.Join(w.Dir, FileName(now)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "----- %s -----\n", title)
	fmt.Fprintf(&b, "Time: [%s]\n", now.Format(time.ANSIC))
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write run log: %w", err)
	}
	return f.Close()
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
