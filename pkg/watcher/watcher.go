// Package watcher reports changes to dataset files so a running session can
// reload its views. It uses fsnotify and falls back to polling on remote
// filesystems or when GLENS_FORCE_POLL is set.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/graphlens/pkg/debug"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNoPaths        = errors.New("no files to watch")
)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithOnChange sets the callback invoked with the path of a changed file.
func WithOnChange(fn func(path string)) Option {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(path string, err error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

type fileState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a set of files. Changes are debounced per file.
type Watcher struct {
	paths            []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func(string)
	onError          func(string, error)
	forcePoll        bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	state       map[string]fileState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan string
}

// New creates a watcher for paths. Duplicate paths are watched once.
func New(paths []string, opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}
	seen := make(map[string]struct{}, len(paths))
	var abs []string
	for _, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		abs = append(abs, a)
	}

	w := &Watcher{
		paths:            abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(string) {},
		onError:          func(string, error) {},
		state:            make(map[string]fileState, len(abs)),
		changeCh:         make(chan string, len(abs)),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.useFallback = w.forcePoll || envBool("GLENS_FORCE_POLL")
	w.fsType = FSTypeUnknown
	for _, p := range w.paths {
		t := DetectFilesystemType(p)
		if t != FSTypeUnknown && w.fsType == FSTypeUnknown {
			w.fsType = t
		}
		if isRemoteFilesystem(t) {
			w.fsType = t
			w.useFallback = true
		}
	}

	for _, p := range w.paths {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			w.state[p] = fileState{mtime: info.ModTime(), size: info.Size()}
		case os.IsPermission(err):
			return ErrPermission
		default:
			// not created yet
			w.state[p] = fileState{}
		}
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	if !w.useFallback {
		if err := w.startFsnotify(); err != nil {
			debug.Log("watcher: fsnotify unavailable, polling: %v", err)
			w.useFallback = true
		}
	}
	if w.useFallback {
		go w.watchPolling(w.ctx)
	}

	debug.Log("watcher: watching %d files (fs=%s, polling=%v)", len(w.paths), w.fsType, w.useFallback)
	w.started = true
	return nil
}

// startFsnotify watches the parent directories, which survives atomic
// rename-over writes. Caller holds mu.
func (w *Watcher) startFsnotify() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]struct{})
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return err
		}
	}
	w.fsWatcher = fsw
	go w.watchFsnotify(w.ctx, fsw)
	return nil
}

// Stop stops watching. The Changed channel stays open; pending debounced
// notifications are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives the path of each changed file.
// Sends never block; a slow reader may miss repeated changes of one file.
func (w *Watcher) Changed() <-chan string {
	return w.changeCh
}

// Paths returns the absolute watched paths.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// FilesystemType returns the classification used to pick the watch mode.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func (w *Watcher) watched(path string) bool {
	for _, p := range w.paths {
		if p == path {
			return true
		}
	}
	return false
}

func (w *Watcher) watchFsnotify(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)
			if !w.watched(path) {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0:
				w.onError(path, ErrFileRemoved)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.debouncer.Trigger(path, func() { w.notifyChange(path) })
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError("", err)
		}
	}
}

func (w *Watcher) watchPolling(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range w.paths {
				w.poll(p)
			}
		}
	}
}

func (w *Watcher) poll(path string) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			w.mu.Lock()
			hadFile := !w.state[path].mtime.IsZero()
			w.state[path] = fileState{}
			w.mu.Unlock()
			if hadFile {
				w.onError(path, ErrFileRemoved)
			}
		case os.IsPermission(err):
			w.onError(path, ErrPermission)
		default:
			w.onError(path, err)
		}
		return
	}

	w.mu.Lock()
	prev := w.state[path]
	changed := info.ModTime().After(prev.mtime) || info.Size() != prev.size
	if changed {
		w.state[path] = fileState{mtime: info.ModTime(), size: info.Size()}
	}
	w.mu.Unlock()

	if changed {
		w.debouncer.Trigger(path, func() { w.notifyChange(path) })
	}
}

func (w *Watcher) notifyChange(path string) {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}

	w.onChange(path)

	select {
	case w.changeCh <- path:
	default:
	}
}
