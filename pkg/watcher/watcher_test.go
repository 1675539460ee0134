package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// recorder collects change notifications from a watcher.
type recorder struct {
	mu      sync.Mutex
	changes []string
	errs    []error
}

func (r *recorder) onChange(path string) {
	r.mu.Lock()
	r.changes = append(r.changes, path)
	r.mu.Unlock()
}

func (r *recorder) onError(_ string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]string, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.changes...), append([]error(nil), r.errs...)
}

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var callCount atomic.Int32

	for i := 0; i < 10; i++ {
		d.Trigger("a", func() {
			callCount.Add(1)
		})
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)

	if count := callCount.Load(); count != 1 {
		t.Errorf("expected 1 callback invocation, got %d", count)
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var a, b atomic.Int32
	d.Trigger("a", func() { a.Add(1) })
	d.Trigger("b", func() { b.Add(1) })
	if d.Pending() != 2 {
		t.Errorf("pending = %d", d.Pending())
	}

	time.Sleep(120 * time.Millisecond)

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
	if d.Pending() != 0 {
		t.Errorf("pending after fire = %d", d.Pending())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var called atomic.Bool
	d.Trigger("a", func() {
		called.Store(true)
	})
	d.Cancel()

	time.Sleep(100 * time.Millisecond)

	if called.Load() {
		t.Error("callback should not have been invoked after cancel")
	}
}

func TestDebouncer_DefaultDuration(t *testing.T) {
	d := NewDebouncer(0)
	if d.Duration() != DefaultDebounceDuration {
		t.Errorf("expected default duration %v, got %v", DefaultDebounceDuration, d.Duration())
	}
}

func TestNew_NoPaths(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("expected ErrNoPaths, got %v", err)
	}
}

func TestNew_DeduplicatesPaths(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	w, err := New([]string{tmpFile, tmpFile})
	if err != nil {
		t.Fatal(err)
	}
	absPath, _ := filepath.Abs(tmpFile)
	if got := w.Paths(); len(got) != 1 || got[0] != absPath {
		t.Errorf("paths = %v", got)
	}
}

func TestWatcher_DetectsFileChange(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "graph.json")
	writeFile(t, tmpFile, "initial")

	rec := &recorder{}
	w, err := New([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithOnChange(rec.onChange),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	writeFile(t, tmpFile, "modified content")

	select {
	case got := <-w.Changed():
		if got != w.Paths()[0] {
			t.Errorf("changed path = %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change")
	}
	if changes, _ := rec.snapshot(); len(changes) == 0 {
		t.Error("OnChange not called")
	}
}

func TestWatcher_PollingFallback(t *testing.T) {
	tmpDir := t.TempDir()
	overview := filepath.Join(tmpDir, "overview.json")
	detail := filepath.Join(tmpDir, "detail.json")
	writeFile(t, overview, "initial")
	writeFile(t, detail, "initial")

	w, err := New([]string{overview, detail},
		WithDebounceDuration(20*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected polling mode")
	}

	time.Sleep(60 * time.Millisecond)
	writeFile(t, detail, "modified content, longer")

	absDetail, _ := filepath.Abs(detail)
	select {
	case got := <-w.Changed():
		if got != absDetail {
			t.Errorf("changed path = %q, want %q", got, absDetail)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestWatcher_EnvForcePoll(t *testing.T) {
	t.Setenv("GLENS_FORCE_POLL", "1")

	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeFile(t, tmpFile, "initial")

	w, err := New([]string{tmpFile},
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to be in polling mode when GLENS_FORCE_POLL is set")
	}
}

func TestWatcher_RemoteFilesystem_UsesPolling(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.db")
	writeFile(t, tmpFile, "initial")

	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(string) FilesystemType { return FSTypeNFS }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	w, err := New([]string{tmpFile},
		WithDebounceDuration(10*time.Millisecond),
		WithPollInterval(25*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if !w.IsPolling() {
		t.Fatal("expected watcher to use polling on remote filesystem")
	}
	if got := w.FilesystemType(); got != FSTypeNFS {
		t.Fatalf("expected filesystem type %v, got %v", FSTypeNFS, got)
	}
}

func TestWatcher_FileRemoved(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeFile(t, tmpFile, "initial")

	rec := &recorder{}
	w, err := New([]string{tmpFile},
		WithDebounceDuration(50*time.Millisecond),
		WithPollInterval(50*time.Millisecond),
		WithForcePoll(true),
		WithOnError(rec.onError),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	if err := os.Remove(tmpFile); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	_, errs := rec.snapshot()
	if len(errs) == 0 || !errors.Is(errs[0], ErrFileRemoved) {
		t.Errorf("expected ErrFileRemoved, got %v", errs)
	}
	if len(errs) > 1 {
		t.Errorf("removal reported %d times", len(errs))
	}
}

func TestWatcher_StartStop(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeFile(t, tmpFile, "initial")

	w, err := New([]string{tmpFile})
	if err != nil {
		t.Fatal(err)
	}

	if w.IsStarted() {
		t.Error("watcher should not be started initially")
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if !w.IsStarted() {
		t.Error("watcher should be started after Start()")
	}
	if err := w.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	w.Stop()
	if w.IsStarted() {
		t.Error("watcher should not be started after Stop()")
	}
	w.Stop()

	// restart after stop
	if err := w.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	w.Stop()
}

func TestWatcher_NoNotifyAfterStop(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")
	writeFile(t, tmpFile, "initial")

	rec := &recorder{}
	w, err := New([]string{tmpFile},
		WithDebounceDuration(100*time.Millisecond),
		WithPollInterval(20*time.Millisecond),
		WithForcePoll(true),
		WithOnChange(rec.onChange),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	writeFile(t, tmpFile, "modified content")
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	time.Sleep(200 * time.Millisecond)
	if changes, _ := rec.snapshot(); len(changes) != 0 {
		t.Errorf("notified after stop: %v", changes)
	}
}

func TestWatcher_PollInterval(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "graph.json")

	customInterval := 500 * time.Millisecond
	w, err := New([]string{tmpFile}, WithPollInterval(customInterval))
	if err != nil {
		t.Fatal(err)
	}
	if got := w.PollInterval(); got != customInterval {
		t.Errorf("expected poll interval %v, got %v", customInterval, got)
	}

	w, _ = New([]string{tmpFile}, WithPollInterval(0))
	if got := w.PollInterval(); got != DefaultPollInterval {
		t.Errorf("zero interval not defaulted: %v", got)
	}
}

func TestFilesystemType_String(t *testing.T) {
	tests := []struct {
		fsType   FilesystemType
		expected string
	}{
		{FSTypeUnknown, "unknown"},
		{FSTypeLocal, "local"},
		{FSTypeNFS, "nfs"},
		{FSTypeSMB, "smb"},
		{FSTypeSSHFS, "sshfs"},
		{FSTypeFUSE, "fuse"},
		{FilesystemType(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.fsType.String(); got != tc.expected {
			t.Errorf("FilesystemType(%d).String() = %q, expected %q", tc.fsType, got, tc.expected)
		}
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"y", true},
		{"on", true},
		{" on ", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("TEST_ENV_BOOL", tc.value)
			if got := envBool("TEST_ENV_BOOL"); got != tc.expected {
				t.Errorf("envBool(%q) = %v, expected %v", tc.value, got, tc.expected)
			}
		})
	}
}

func TestDetectFilesystemType(t *testing.T) {
	if got := DetectFilesystemType(""); got != FSTypeUnknown {
		t.Errorf("DetectFilesystemType(\"\") = %v, expected FSTypeUnknown", got)
	}

	var probed string
	orig := detectFilesystemTypeFunc
	detectFilesystemTypeFunc = func(p string) FilesystemType { probed = p; return FSTypeLocal }
	t.Cleanup(func() { detectFilesystemTypeFunc = orig })

	tmpDir := t.TempDir()
	missing := filepath.Join(tmpDir, "nested", "missing.json")
	if got := DetectFilesystemType(missing); got != FSTypeLocal {
		t.Errorf("got %v", got)
	}
	if probed != tmpDir {
		t.Errorf("probed %q, want nearest existing parent %q", probed, tmpDir)
	}
}
