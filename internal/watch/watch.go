// Package watch ingests files dropped into a directory. Create and write
// events are debounced per path so a file being copied in is ingested once,
// after the writer goes quiet.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// IngestFunc handles one settled file.
type IngestFunc func(ctx context.Context, path string) error

// Config controls the watcher.
type Config struct {
	Dir string

	// Debounce is the quiet period after the last event for a path; zero
	// means 500ms.
	Debounce time.Duration

	// Accept filters file names; nil accepts everything.
	Accept func(name string) bool
}

// Watcher owns an fsnotify watcher on one directory.
type Watcher struct {
	cfg    Config
	ingest IngestFunc
	logger *log.Logger
	fsw    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pending
	wg      sync.WaitGroup
}

type pending struct{ timer *time.Timer }

// New starts watching cfg.Dir. Events are only handled once Run is called.
func New(cfg Config, ingest IngestFunc, logger *log.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: bad dir %q: %w", cfg.Dir, err)
	}
	cfg.Dir = dir

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", dir, err)
	}
	return &Watcher{
		cfg:     cfg,
		ingest:  ingest,
		logger:  logger,
		fsw:     fsw,
		pending: make(map[string]*pending),
	}, nil
}

// Run dispatches events until ctx is done, then cancels pending timers, waits
// for in-flight ingests and closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Printf("watch: watching %s", w.cfg.Dir)
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if w.cfg.Accept != nil && !w.cfg.Accept(filepath.Base(ev.Name)) {
				continue
			}
			w.schedule(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch: error: %v", err)
		}
	}
}

// schedule (re)arms the debounce timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pending[path]; ok && prev.timer.Stop() {
		w.wg.Done()
	}
	p := &pending{}
	w.pending[path] = p
	w.wg.Add(1)
	p.timer = time.AfterFunc(w.cfg.Debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == p {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.logger.Printf("watch: file=%s settled, ingesting", path)
		if err := w.ingest(ctx, path); err != nil {
			w.logger.Printf("watch: file=%s ingest failed: %v", path, err)
		}
	})
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	for path, p := range w.pending {
		if p.timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
	_ = w.fsw.Close()
}
