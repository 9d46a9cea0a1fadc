package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-gate/errors"
)

// DefaultDebounce is how long a file must be quiet before it is checked.
const DefaultDebounce = 300 * time.Millisecond

// Checker decides admission for module bytes. *compat.Checker satisfies it;
// wrap a runtime as CheckerFunc(rt.Admit) to share its verdict cache.
type Checker interface {
	Check(code []byte) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(code []byte) error

func (f CheckerFunc) Check(code []byte) error { return f(code) }

// Result is the verdict for one settled file. Err is nil when the module
// was admitted, the checker's verdict otherwise, or the read error.
type Result struct {
	Path string
	Err  error
	At   time.Time
}

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Checked  int
	Rejected int
	Errors   int
}

// Watcher re-checks *.wasm files in a directory when they change.
type Watcher struct {
	mu          sync.Mutex
	fs          *fsnotify.Watcher
	dir         string
	checker     Checker
	logger      *zap.Logger
	debounceDur time.Duration
	initialScan bool
	pending     map[string]time.Time
	results     chan Result
	stopCh      chan struct{}
	doneCh      chan struct{}
	started     bool
	stopped     bool
	stats       Stats
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a changed file is checked.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDur = d
		}
	}
}

// WithLogger sets the logger. Defaults to the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithInitialScan checks every module already in the directory on Start.
func WithInitialScan() Option {
	return func(w *Watcher) { w.initialScan = true }
}

// New creates a Watcher for dir. Nothing is watched until Start.
func New(dir string, checker Checker, opts ...Option) (*Watcher, error) {
	if checker == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "watch: nil checker")
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, errors.NotFound(errors.PhaseRuntime, "watch directory", dir)
	}
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "watch "+dir)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInput(errors.PhaseRuntime, dir+" is not a directory")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindUnsupported, err, "create fs watcher")
	}

	w := &Watcher{
		fs:          fw,
		dir:         dir,
		checker:     checker,
		logger:      Logger(),
		debounceDur: DefaultDebounce,
		pending:     make(map[string]time.Time),
		results:     make(chan Result, 64),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Results delivers one Result per settled file. It is closed when the
// watcher stops.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Start begins watching. It is non-blocking; the event loop runs until ctx
// is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.fs.Add(w.dir); err != nil {
		w.fs.Close()
		close(w.results)
		close(w.doneCh)
		return errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "watch "+w.dir)
	}
	w.logger.Info("watching directory", zap.String("dir", w.dir), zap.Duration("debounce", w.debounceDur))

	if w.initialScan {
		matches, _ := filepath.Glob(filepath.Join(w.dir, "*.wasm"))
		now := time.Now().Add(-w.debounceDur)
		w.mu.Lock()
		for _, path := range matches {
			w.pending[path] = now
		}
		w.mu.Unlock()
	}

	go w.run(ctx)
	return nil
}

// Stop stops the event loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	if !started {
		w.fs.Close()
		close(w.results)
		return
	}
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.results)
	defer w.fs.Close()

	tick := w.debounceDur / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watcher context cancelled")
			return

		case <-w.stopCh:
			w.logger.Debug("watcher stopped")
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			if !w.processSettled(ctx) {
				return
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".wasm") {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.logger.Debug("module changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.stats.Events++
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// processSettled checks files that have been quiet for the debounce window.
// It returns false if the watcher was stopped while delivering results.
func (w *Watcher) processSettled(ctx context.Context) bool {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		res, ok := w.check(path)
		if !ok {
			continue
		}
		select {
		case w.results <- res:
		case <-ctx.Done():
			return false
		case <-w.stopCh:
			return false
		}
	}
	return true
}

func (w *Watcher) check(path string) (Result, bool) {
	code, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, false
		}
		w.logger.Warn("read module", zap.String("path", path), zap.Error(err))
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return Result{Path: path, Err: err, At: time.Now()}, true
	}

	verdict := w.checker.Check(code)

	w.mu.Lock()
	w.stats.Checked++
	if verdict != nil {
		w.stats.Rejected++
	}
	w.mu.Unlock()

	if verdict != nil {
		w.logger.Info("module rejected", zap.String("path", path), zap.Error(verdict))
	} else {
		w.logger.Info("module admitted", zap.String("path", path))
	}
	return Result{Path: path, Err: verdict, At: time.Now()}, true
}
