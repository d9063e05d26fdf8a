package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	hit   chan struct{}
}

func newRecorder() *recorder { return &recorder{hit: make(chan struct{}, 16)} }

func (r *recorder) ingest(_ context.Context, path string) error {
	r.mu.Lock()
	r.paths = append(r.paths, filepath.Base(path))
	r.mu.Unlock()
	r.hit <- struct{}{}
	return nil
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, cfg Config, rec *recorder) context.CancelFunc {
	t.Helper()
	w, err := New(cfg, rec.ingest, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel
}

func TestWatcher_DebouncesWritesPerPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	startWatcher(t, Config{
		Dir:      dir,
		Debounce: 100 * time.Millisecond,
		Accept:   func(name string) bool { return strings.HasSuffix(name, ".csv") },
	}, rec)

	p := filepath.Join(dir, "drop.csv")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = f.WriteString("a,b\n")
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	// Ignored by the filter.
	if err := os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{1}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-rec.hit:
	case <-time.After(5 * time.Second):
		t.Fatalf("no ingest after 5s")
	}
	time.Sleep(300 * time.Millisecond)

	if got := rec.got(); len(got) != 1 || got[0] != "drop.csv" {
		t.Fatalf("ingested=%v; want [drop.csv]", got)
	}
}

func TestWatcher_CancelDropsPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	cancel := startWatcher(t, Config{Dir: dir, Debounce: time.Hour}, rec)

	if err := os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	if got := rec.got(); len(got) != 0 {
		t.Fatalf("ingested=%v; want none before debounce elapsed", got)
	}
}

func TestNew_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Dir: filepath.Join(t.TempDir(), "nope")}, nil, nil); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
