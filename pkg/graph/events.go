package graph

import (
	"sort"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// EventKind classifies a change notification.
type EventKind int

const (
	// EventLoaded fires after ReplaceView installed a new view.
	EventLoaded EventKind = iota
	// EventActive fires when the active view mode switches.
	EventActive
	// EventSelection fires when node or component selection changed.
	EventSelection
	// EventVisibility fires when filters changed node or link visibility.
	EventVisibility
	// EventStructure fires when nodes or links were added or removed.
	EventStructure
	// EventColors fires after derived colours were written.
	EventColors
	// EventLayout fires when positions or pins changed.
	EventLayout
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventActive:
		return "active"
	case EventSelection:
		return "selection"
	case EventVisibility:
		return "visibility"
	case EventStructure:
		return "structure"
	case EventColors:
		return "colors"
	case EventLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the store lock is released.
type Event struct {
	Kind   EventKind
	Mode   model.Mode
	ViewID string
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. fn runs on the goroutine that performed the mutation and may call
// back into the store.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.subsMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	// subscription order
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
