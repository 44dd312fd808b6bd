package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"captionizer/internal/logs"
)

func TestLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captionizer.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{limit: 2, want: []string{"b", "c"}},
		{limit: 5, want: []string{"a", "b", "c"}},
		{limit: 0, want: nil},
	}
	for _, tt := range tests {
		lines, offset, err := logs.Last(path, tt.limit)
		if err != nil {
			t.Fatalf("Last(%d): %v", tt.limit, err)
		}
		if !reflect.DeepEqual(lines, tt.want) && !(len(lines) == 0 && len(tt.want) == 0) {
			t.Fatalf("Last(%d) = %#v, want %#v", tt.limit, lines, tt.want)
		}
		if offset != 6 {
			t.Fatalf("Last(%d) offset = %d, want 6", tt.limit, offset)
		}
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 10)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("got %v %d %v", lines, offset, err)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captionizer.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 5*time.Millisecond, func(line string) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, line)
			if len(got) == 2 {
				cancel()
			}
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\npart"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := f.WriteString("ial\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("follow did not see the appended lines")
	}
	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(got, []string{"later", "partial"}) {
		t.Fatalf("lines = %#v", got)
	}
}

func TestGrep(t *testing.T) {
	lines := []string{"batch_id=1 job started", "batch_id=2 job started", "batch_id=1 job completed"}
	got := logs.Grep(lines, "batch_id=1", "job")
	if len(got) != 2 || got[1] != "batch_id=1 job completed" {
		t.Fatalf("Grep = %#v", got)
	}
	if len(logs.Grep(lines)) != 3 {
		t.Fatal("Grep without terms should keep every line")
	}
}
