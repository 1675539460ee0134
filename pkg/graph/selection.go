package graph

import (
	"slices"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// ToggleNodeSelection flips id's membership in the selection and reports
// whether it is now selected. Hidden nodes can be selected.
func (s *Store) ToggleNodeSelection(mode model.Mode, id string) (bool, error) {
	var selected bool
	err := s.update("toggleNodeSelection", mode, func(v *View) ([]EventKind, error) {
		n, ok := v.Node(id)
		if !ok {
			return nil, validationf("toggleNodeSelection", "id", "unknown node %q", id)
		}
		if n.Selected {
			n.Selected = false
			v.selectedNodes = slices.DeleteFunc(v.selectedNodes, func(s string) bool { return s == id })
		} else {
			n.Selected = true
			v.selectedNodes = append(v.selectedNodes, id)
		}
		selected = n.Selected
		return v.selectionChanged(), nil
	})
	return selected, err
}

// SetSelection replaces the node selection with ids (unknown ids are
// rejected, duplicates collapse).
func (s *Store) SetSelection(mode model.Mode, ids []string) error {
	return s.update("setSelection", mode, func(v *View) ([]EventKind, error) {
		for _, id := range ids {
			if _, ok := v.Node(id); !ok {
				return nil, validationf("setSelection", "ids", "unknown node %q", id)
			}
		}
		v.clearNodeSelection()
		for _, id := range ids {
			n, _ := v.Node(id)
			if n.Selected {
				continue
			}
			n.Selected = true
			v.selectedNodes = append(v.selectedNodes, id)
		}
		return v.selectionChanged(), nil
	})
}

// ClearSelection deselects every node. Component selection is untouched.
func (s *Store) ClearSelection(mode model.Mode) error {
	return s.update("clearSelection", mode, func(v *View) ([]EventKind, error) {
		if len(v.selectedNodes) == 0 {
			return nil, nil
		}
		v.clearNodeSelection()
		return v.selectionChanged(), nil
	})
}

// SelectComponent toggles id's membership in the component selection. It
// does not select the component's nodes.
func (s *Store) SelectComponent(mode model.Mode, id int) (bool, error) {
	var selected bool
	err := s.update("selectComponent", mode, func(v *View) ([]EventKind, error) {
		if _, ok := v.componentIndex[id]; !ok {
			return nil, validationf("selectComponent", "id", "unknown component %d", id)
		}
		if i := slices.Index(v.selectedComponents, id); i >= 0 {
			v.selectedComponents = slices.Delete(v.selectedComponents, i, i+1)
		} else {
			v.selectedComponents = append(v.selectedComponents, id)
			selected = true
		}
		return []EventKind{EventSelection}, nil
	})
	return selected, err
}

// SetSelfCentric restricts visibility to the given hop radius around the
// selection; SelfCentricOff lifts the restriction.
func (s *Store) SetSelfCentric(mode model.Mode, sc SelfCentric) error {
	return s.update("setSelfCentric", mode, func(v *View) ([]EventKind, error) {
		if !sc.IsValid() {
			return nil, validationf("setSelfCentric", "hops", "must be off or 1..3, got %d", sc)
		}
		if v.filter.SelfCentric == sc {
			return nil, nil
		}
		v.filter.SelfCentric = sc
		v.recomputeVisibility()
		return []EventKind{EventVisibility}, nil
	})
}

func (v *View) clearNodeSelection() {
	for _, id := range v.selectedNodes {
		if n, ok := v.Node(id); ok {
			n.Selected = false
		}
	}
	v.selectedNodes = v.selectedNodes[:0]
}

// selectionChanged re-derives visibility when it depends on the selection.
func (v *View) selectionChanged() []EventKind {
	if v.filter.SelfCentric == SelfCentricOff {
		return []EventKind{EventSelection}
	}
	v.recomputeVisibility()
	return []EventKind{EventSelection, EventVisibility}
}
