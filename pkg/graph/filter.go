package graph

import (
	"fmt"
	"reflect"

	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// FilterNodesByDegree shows exactly the nodes whose degree lies in
// [min, max] and re-derives link visibility. Bounds are clamped to
// [0, meta.MaxDegree]; min > max is rejected without any change. Passing the
// full range lifts the filter.
func (s *Store) FilterNodesByDegree(mode model.Mode, minDeg, maxDeg int) error {
	defer metrics.Timer(metrics.DegreeFilter)()

	return s.update("filterNodesByDegree", mode, func(v *View) ([]EventKind, error) {
		if minDeg > maxDeg {
			return nil, validationf("filterNodesByDegree", "min", "must not exceed max (%d > %d)", minDeg, maxDeg)
		}
		hi := v.meta.MaxDegree
		minDeg = clamp(minDeg, 0, hi)
		maxDeg = clamp(maxDeg, 0, hi)

		v.filter.MinDegree = minDeg
		v.filter.MaxDegree = maxDeg
		v.filter.DegreeActive = !(minDeg == 0 && maxDeg == hi)
		v.recomputeVisibility()
		return []EventKind{EventVisibility}, nil
	})
}

// ResetFilters lifts the degree range and the self-centric restriction.
func (s *Store) ResetFilters(mode model.Mode) error {
	return s.update("resetFilters", mode, func(v *View) ([]EventKind, error) {
		v.filter.DegreeActive = false
		v.syncDegreeRange()
		v.filter.SelfCentric = SelfCentricOff
		v.recomputeVisibility()
		return []EventKind{EventVisibility}, nil
	})
}

// SetLinksVisible flips the global link toggle.
func (s *Store) SetLinksVisible(mode model.Mode, visible bool) error {
	return s.update("setLinksVisible", mode, func(v *View) ([]EventKind, error) {
		if v.filter.LinksVisible == visible {
			return nil, nil
		}
		v.filter.LinksVisible = visible
		for _, l := range v.links {
			v.refreshLink(l)
		}
		return []EventKind{EventVisibility}, nil
	})
}

// SetLinkHidden explicitly hides or shows the link between a and b.
func (s *Store) SetLinkHidden(mode model.Mode, a, b string, hidden bool) error {
	return s.update("setLinkHidden", mode, func(v *View) ([]EventKind, error) {
		l, ok := v.Link(a, b)
		if !ok {
			return nil, validationf("setLinkHidden", "link", "no link between %q and %q", a, b)
		}
		l.Hidden = hidden
		v.refreshLink(l)
		return []EventKind{EventVisibility}, nil
	})
}

// SetComponentVisible toggles a component. Its nodes stay members but are
// shown only while the component is visible.
func (s *Store) SetComponentVisible(mode model.Mode, id int, visible bool) error {
	return s.update("setComponentVisible", mode, func(v *View) ([]EventKind, error) {
		c, ok := v.componentIndex[id]
		if !ok {
			return nil, validationf("setComponentVisible", "id", "unknown component %d", id)
		}
		if c.Visible == visible {
			return nil, nil
		}
		c.Visible = visible
		v.refreshNodes(v.members[id])
		return []EventKind{EventVisibility}, nil
	})
}

// ValueQuery selects nodes whose Property equals Value. When GroupProperty is
// set (grouped chart drill-down) GroupProperty must equal GroupValue too.
type ValueQuery struct {
	Property      string
	Value         any
	GroupProperty string
	GroupValue    any
}

// FilterNodesWithValue returns, in insertion order, the ids of nodes matching
// q. It never changes the view.
func (s *Store) FilterNodesWithValue(mode model.Mode, q ValueQuery) ([]string, error) {
	var (
		ids []string
		err error
	)
	rerr := s.Read(mode, func(v *View) {
		ids, err = v.nodesWithValue(q)
	})
	if rerr != nil {
		return nil, rerr
	}
	return ids, err
}

func (v *View) nodesWithValue(q ValueQuery) ([]string, error) {
	if q.Property == "" {
		return nil, validationf("filterNodesWithValue", "property", "must not be empty")
	}
	if !v.hasNodeProperty(q.Property) {
		return nil, validationf("filterNodesWithValue", "property", "unknown node property %q", q.Property)
	}
	grouped := q.GroupProperty != ""
	if grouped && !v.hasNodeProperty(q.GroupProperty) {
		return nil, validationf("filterNodesWithValue", "groupProperty", "unknown node property %q", q.GroupProperty)
	}

	var ids []string
	for _, n := range v.nodes {
		val, ok := n.Property(q.Property)
		if !ok || !valuesEqual(val, q.Value) {
			continue
		}
		if grouped {
			gval, ok := n.Property(q.GroupProperty)
			if !ok || !valuesEqual(gval, q.GroupValue) {
				continue
			}
		}
		ids = append(ids, n.ID)
	}
	return ids, nil
}

// hasNodeProperty reports whether name is a built-in attribute or present on
// at least one node.
func (v *View) hasNodeProperty(name string) bool {
	switch name {
	case "id", "label", "feature", "type", "degree", "component":
		return true
	}
	for _, n := range v.nodes {
		if _, ok := n.Properties[name]; ok {
			return true
		}
	}
	return false
}

// FilterEdgesWithValue returns the distinct ids of nodes incident to a
// connection whose label or feature (property) equals value, in order of
// first occurrence.
func (s *Store) FilterEdgesWithValue(mode model.Mode, property string, value any) ([]string, error) {
	var (
		ids []string
		err error
	)
	rerr := s.Read(mode, func(v *View) {
		ids, err = v.edgesWithValue(property, value)
	})
	if rerr != nil {
		return nil, rerr
	}
	return ids, err
}

func (v *View) edgesWithValue(property string, value any) ([]string, error) {
	var pick func(model.Connection) string
	switch property {
	case "label":
		pick = func(c model.Connection) string { return c.Label }
	case "feature", "type":
		pick = func(c model.Connection) string { return c.Feature }
	default:
		return nil, validationf("filterEdgesWithValue", "property", "unknown connection property %q (want label or feature)", property)
	}

	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, l := range v.links {
		for _, c := range l.Connections {
			if valuesEqual(pick(c), value) {
				add(l.Source)
				add(l.Target)
				break
			}
		}
	}
	return ids, nil
}

// valuesEqual compares two attribute values: numbers numerically, everything
// else by exact (case-sensitive) string form of identical kinds. A string
// never equals a number.
func valuesEqual(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && fa == fb
	}
	sa, aStr := a.(string)
	sb, bStr := b.(string)
	if aStr || bStr {
		return aStr && bStr && sa == sb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(x any) (float64, bool) {
	if x == nil {
		return 0, false
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func clamp(x, lo, hi int) int {
	return max(lo, min(x, hi))
}
