// Package watch re-runs the utilization batch when the files of a directory
// data source change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/klytics/licensekit/internal/logging"
)

// Config holds the watcher settings.
type Config struct {
	Dir        string        `json:"dir"`
	Extensions []string      `json:"extensions"`
	Debounce   time.Duration `json:"debounce"`
}

// DefaultExtensions are the file types a directory source can read.
var DefaultExtensions = []string{".csv", ".json", ".xlsx"}

// Handler runs one batch for the changed paths.
type Handler func(ctx context.Context, changed []string) error

// Trigger status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Trigger records one debounced batch of changes and the run it caused.
type Trigger struct {
	Time     time.Time `json:"time"`
	Paths    []string  `json:"paths"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Duration string    `json:"duration"`
}

// Status is a snapshot of the watcher.
type Status struct {
	Running  bool   `json:"running"`
	Dir      string `json:"dir"`
	Triggers int    `json:"triggers"`
	Pending  int    `json:"pending"`
}

// Watcher collects file events for a directory and, once they settle for
// the debounce interval, calls its handler with every path that changed.
// Runs never overlap.
type Watcher struct {
	cfg     Config
	handler Handler
	exts    map[string]bool

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    *time.Timer
	triggers []Trigger
	running  bool

	runMu sync.Mutex
	fsw   *fsnotify.Watcher
}

// New creates a Watcher for cfg.Dir. Debounce defaults to 500ms.
func New(cfg Config, h Handler) (*Watcher, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("watch needs a directory")
	}
	if h == nil {
		return nil, fmt.Errorf("watch needs a handler")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create file watcher: %w", err)
	}
	return &Watcher{
		cfg:     cfg,
		handler: h,
		exts:    exts,
		pending: make(map[string]struct{}),
		fsw:     fsw,
	}, nil
}

// Start watches the directory until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir, err := filepath.Abs(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %w", w.cfg.Dir, err)
	}
	if err := w.fsw.Add(dir); err != nil {
		_ = w.fsw.Close()
		return fmt.Errorf("could not watch %s: %w", dir, err)
	}
	log := logging.Ctx(ctx)
	log.Info().Str("dir", dir).Strs("extensions", w.cfg.Extensions).Dur("debounce", w.cfg.Debounce).Msg("watching")

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping watcher")
			return w.fsw.Close()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}

// Matches reports whether path is an input file the watcher reacts to.
func (w *Watcher) Matches(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return
	}
	if !w.Matches(ev.Name) {
		return
	}
	logging.Ctx(ctx).Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("input changed")
	w.schedule(ctx, ev.Name)
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() { w.flush(ctx) })
}

// flush runs the handler for everything pending.
func (w *Watcher) flush(ctx context.Context) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()
	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	log := logging.Ctx(ctx)
	start := time.Now()
	t := Trigger{Time: start, Paths: paths, Status: StatusOK}
	if err := w.handler(ctx, paths); err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
		log.Error().Err(err).Strs("paths", paths).Msg("triggered run failed")
	} else {
		log.Info().Strs("paths", paths).Msg("triggered run finished")
	}
	t.Duration = time.Since(start).Round(time.Millisecond).String()

	w.mu.Lock()
	w.triggers = append(w.triggers, t)
	w.mu.Unlock()
}

// Triggers returns the recorded triggers.
func (w *Watcher) Triggers() []Trigger {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Trigger, len(w.triggers))
	copy(out, w.triggers)
	return out
}

// Status returns the current watcher status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Status{
		Running:  w.running,
		Dir:      w.cfg.Dir,
		Triggers: len(w.triggers),
		Pending:  len(w.pending),
	}
}

// Close releases the underlying watcher when Start was never called.
func (w *Watcher) Close() error { return w.fsw.Close() }

const pidFile = "watch.pid"

// WritePIDFile records the current process in dir so a second watcher can
// refuse to start.
func WritePIDFile(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, pidFile), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// ReadPIDFile returns the PID recorded in dir.
func ReadPIDFile(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, pidFile))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes the PID file from dir.
func RemovePIDFile(dir string) error {
	return os.Remove(filepath.Join(dir, pidFile))
}

// Logger returns a logger tagged for the watcher.
func Logger() zerolog.Logger {
	return logging.Logger().With().Str("component", "watch").Logger()
}
