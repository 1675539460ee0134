package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiet period before a change is reported.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer delays a callback until no trigger for the same key arrived for
// the configured duration. Keys debounce independently.
type Debouncer struct {
	duration time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewDebouncer returns a Debouncer; a non-positive d selects
// DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d, timers: make(map[string]*time.Timer)}
}

// Duration returns the quiet period.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Trigger (re)schedules fn for key. Only the last fn of a burst runs.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		current := d.timers[key] == t
		if current {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		if current {
			fn()
		}
	})
	d.timers[key] = t
}

// Cancel drops every pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}

// Pending returns the number of scheduled callbacks.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}
