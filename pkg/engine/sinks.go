package engine

import (
	"maps"

	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// OnNodeClick toggles the selection of id in the active view and reports
// whether it is now selected.
func (e *Engine) OnNodeClick(id string) (selected bool, err error) {
	err = e.write(false, func(m model.Mode) error {
		var err error
		selected, err = e.store.ToggleNodeSelection(m, id)
		return err
	})
	return selected, err
}

// OnNodeHover highlights id and its neighbours. An empty id ends the hover.
// The returned set holds the neighbour ids.
func (e *Engine) OnNodeHover(id string) (map[string]struct{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == "" {
		e.clearHoverLocked()
		return nil, nil
	}
	var set map[string]struct{}
	found := false
	err := e.store.Read(e.store.Active(), func(v *graph.View) {
		n, ok := v.Node(id)
		if !ok {
			return
		}
		found = true
		set = make(map[string]struct{}, len(n.Neighbours))
		for nid := range n.Neighbours {
			set[nid] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &graph.ValidationError{Op: "hover", Field: "id", Reason: "unknown node " + id}
	}
	e.hover = id
	e.hoverSet = set
	return maps.Clone(set), nil
}

// OnBackgroundClick clears the node selection and the hover.
func (e *Engine) OnBackgroundClick() error {
	return e.write(false, func(m model.Mode) error {
		e.clearHoverLocked()
		return e.store.ClearSelection(m)
	})
}

// Hover returns the hovered node and its neighbour set; id is empty when
// nothing is hovered.
func (e *Engine) Hover() (id string, neighbours map[string]struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hover, maps.Clone(e.hoverSet)
}

// Highlighted reports whether id is the hovered node or one of its
// neighbours.
func (e *Engine) Highlighted(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hover == "" {
		return false
	}
	if id == e.hover {
		return true
	}
	_, ok := e.hoverSet[id]
	return ok
}

func (e *Engine) clearHoverLocked() {
	e.hover = ""
	e.hoverSet = nil
}

// pruneHoverLocked drops the hover when its node left the view and refreshes
// the neighbour set otherwise.
func (e *Engine) pruneHoverLocked(mode model.Mode) {
	if e.hover == "" {
		return
	}
	_ = e.store.Read(mode, func(v *graph.View) {
		n, ok := v.Node(e.hover)
		if !ok {
			e.hover, e.hoverSet = "", nil
			return
		}
		e.hoverSet = make(map[string]struct{}, len(n.Neighbours))
		for nid := range n.Neighbours {
			e.hoverSet[nid] = struct{}{}
		}
	})
}
