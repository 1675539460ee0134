// Package graph owns the canonical per-mode graph views and every operation
// that mutates them: loading, incremental upserts, selection, visibility
// filters, expansion merges, trimming and removal.
//
// A Store serialises all writers behind one mutex. Each public method leaves
// the view consistent (degree matches the neighbour set, link visibility
// follows endpoint visibility, component counts match membership) before it
// returns, and change notifications are delivered after the lock is released.
package graph

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Default tuning values.
const (
	DefaultRecomputeThreshold = 0.25
	DefaultTopK               = 5
)

// Options tunes derivation work.
type Options struct {
	// RecomputeThreshold is the fraction of nodes an upsert may touch before
	// derived data is recomputed from scratch instead of patched.
	RecomputeThreshold float64
	// TopK bounds the per-component largest node/connection summaries.
	TopK int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		RecomputeThreshold: DefaultRecomputeThreshold,
		TopK:               DefaultTopK,
	}
}

func (o Options) withDefaults() Options {
	if o.RecomputeThreshold <= 0 || o.RecomputeThreshold > 1 {
		o.RecomputeThreshold = DefaultRecomputeThreshold
	}
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// ViewStamp identifies a view at the time a request was issued.
type ViewStamp struct {
	Mode   model.Mode
	ViewID string
}

// Store holds one View per mode and tracks which one is active.
type Store struct {
	mu     sync.RWMutex
	opts   Options
	views  map[model.Mode]*View
	active model.Mode

	subsMu  sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewStore creates a store with empty overview and detail views; overview is
// active.
func NewStore(opts Options) *Store {
	s := &Store{
		opts:   opts.withDefaults(),
		views:  make(map[model.Mode]*View, 2),
		active: model.ModeOverview,
		subs:   make(map[int]func(Event)),
	}
	for _, m := range model.Modes() {
		s.views[m] = newView(uuid.NewString(), m)
	}
	return s
}

// Options returns the effective options.
func (s *Store) Options() Options {
	return s.opts
}

// Read runs fn with the view of mode under the read lock. fn must not retain
// the view or call back into the store.
func (s *Store) Read(mode model.Mode, fn func(v *View)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.viewLocked("read", mode)
	if err != nil {
		return err
	}
	fn(v)
	return nil
}

// Active returns the mode the user is currently looking at.
func (s *Store) Active() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive switches the active view. Switching invalidates stamps taken on
// the previously active view.
func (s *Store) SetActive(mode model.Mode) error {
	s.mu.Lock()
	v, err := s.viewLocked("setActive", mode)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	changed := s.active != mode
	s.active = mode
	id := v.id
	s.mu.Unlock()

	if changed {
		debug.Log("graph: active view -> %s (%s)", mode, id)
		s.emit(Event{Kind: EventActive, Mode: mode, ViewID: id})
	}
	return nil
}

// Stamp captures the identity of the view of mode.
func (s *Store) Stamp(mode model.Mode) (ViewStamp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, err := s.viewLocked("stamp", mode)
	if err != nil {
		return ViewStamp{}, err
	}
	return ViewStamp{Mode: mode, ViewID: v.id}, nil
}

// Current reports whether stamp still names the active view.
func (s *Store) Current(stamp ViewStamp) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked(stamp)
}

func (s *Store) currentLocked(stamp ViewStamp) bool {
	v, ok := s.views[stamp.Mode]
	return ok && s.active == stamp.Mode && v.id == stamp.ViewID
}

func (s *Store) viewLocked(op string, mode model.Mode) (*View, error) {
	v, ok := s.views[mode]
	if !ok {
		return nil, validationf(op, "mode", "unknown view mode %q", mode)
	}
	return v, nil
}

// update runs fn on the view of mode under the write lock and emits the
// returned events once the lock is released.
func (s *Store) update(op string, mode model.Mode, fn func(v *View) ([]EventKind, error)) error {
	s.mu.Lock()
	v, err := s.viewLocked(op, mode)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	kinds, err := fn(v)
	if err == nil && debug.Enabled() {
		debug.AssertNoError(v.CheckInvariants(), op)
	}
	id := v.id
	s.mu.Unlock()
	if err != nil {
		return err
	}

	events := make([]Event, 0, len(kinds))
	for _, k := range kinds {
		events = append(events, Event{Kind: k, Mode: mode, ViewID: id})
	}
	s.emit(events...)
	return nil
}
