// Package debug provides conditional debug logging for glens.
//
// Debug logging is enabled by setting the GLENS_DEBUG environment variable:
//
//	GLENS_DEBUG=1 glens -data graph.json -trim
//
// When enabled, messages go to stderr with timestamps and the graph store
// checks its invariants after every mutation, panicking on the first
// violation. When disabled (default), every function here is a no-op.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

const prefix = "[GLENS] "

var (
	mu      sync.RWMutex
	enabled bool
	logger  *log.Logger
)

func init() {
	if os.Getenv("GLENS_DEBUG") != "" {
		enabled = true
		logger = newLogger(os.Stderr)
	}
}

func newLogger(w io.Writer) *log.Logger {
	return log.New(w, prefix, log.Ltime|log.Lmicroseconds)
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled turns debug logging on or off at runtime.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = e
	if e && logger == nil {
		logger = newLogger(os.Stderr)
	}
}

// SetOutput redirects debug output, mainly for tests. It returns a function
// restoring the previous writer state.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = newLogger(w)
	return func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	}
}

func active() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !enabled {
		return nil
	}
	return logger
}

// Log writes a printf-style debug message.
func Log(format string, args ...any) {
	if l := active(); l != nil {
		l.Printf(format, args...)
	}
}

// LogIf writes a debug message only if cond holds.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogTiming writes a timing message.
func LogTiming(name string, d time.Duration) {
	if l := active(); l != nil {
		l.Printf("%s took %v", name, d)
	}
}

// Trace logs entry and, when the returned func runs, exit with timing:
//
//	defer debug.Trace("expand")()
func Trace(name string) func() {
	l := active()
	if l == nil {
		return func() {}
	}
	l.Printf("-> %s", name)
	start := time.Now()
	return func() {
		l.Printf("<- %s (%v)", name, time.Since(start))
	}
}

// Assert panics with msg if cond is false. Only active when debug is enabled.
func Assert(cond bool, msg string) {
	l := active()
	if l == nil || cond {
		return
	}
	l.Printf("ASSERTION FAILED: %s", msg)
	panic(fmt.Sprintf("debug assertion failed: %s", msg))
}

// AssertNoError panics if err is not nil. Only active when debug is enabled.
func AssertNoError(err error, context string) {
	l := active()
	if l == nil || err == nil {
		return
	}
	l.Printf("ASSERTION FAILED: %s: %v", context, err)
	panic(fmt.Sprintf("debug assertion failed: %s: %v", context, err))
}
