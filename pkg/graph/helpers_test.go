package graph

import (
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

const ov = model.ModeOverview

// loaded returns a store whose overview view holds ds.
func loaded(t testing.TB, ds model.Dataset) *Store {
	t.Helper()
	s := NewStore(DefaultOptions())
	if err := s.ReplaceView(ov, ds); err != nil {
		t.Fatalf("ReplaceView: %v", err)
	}
	checkView(t, s, ov)
	return s
}

func checkView(t testing.TB, s *Store, mode model.Mode) {
	t.Helper()
	if err := s.Read(mode, func(v *View) { testutil.AssertConsistent(t, v) }); err != nil {
		t.Fatalf("Read: %v", err)
	}
}

// nodeState copies the interesting fields of a node.
type nodeState struct {
	Degree    int
	Visible   bool
	Selected  bool
	Component int
}

func nodeOf(t testing.TB, s *Store, id string) nodeState {
	t.Helper()
	var st nodeState
	found := false
	_ = s.Read(ov, func(v *View) {
		n, ok := v.Node(id)
		if !ok {
			return
		}
		found = true
		st = nodeState{Degree: n.Degree, Visible: n.Visible, Selected: n.Selected, Component: n.Component}
	})
	if !found {
		t.Fatalf("node %q not in view", id)
	}
	return st
}

func hasNode(s *Store, id string) bool {
	var ok bool
	_ = s.Read(ov, func(v *View) { _, ok = v.Node(id) })
	return ok
}

func linkVisible(t testing.TB, s *Store, a, b string) bool {
	t.Helper()
	var vis, ok bool
	_ = s.Read(ov, func(v *View) {
		var l *model.Link
		l, ok = v.Link(a, b)
		if ok {
			vis = l.Visible
		}
	})
	if !ok {
		t.Fatalf("no link %s-%s", a, b)
	}
	return vis
}

func visibleIDs(s *Store) []string {
	var ids []string
	_ = s.Read(ov, func(v *View) { ids = v.VisibleNodeIDs() })
	return ids
}

func counts(s *Store) (nodes, links, components int) {
	_ = s.Read(ov, func(v *View) {
		nodes, links, components = len(v.Nodes()), len(v.Links()), len(v.Components())
	})
	return
}

// scenarioABC: A has degree 3, B degree 1, C is isolated.
func scenarioABC() model.Dataset {
	return testutil.Dataset([]string{"A-B", "A-D", "A-E"}, "C")
}

// componentsByNode maps every node id to its component id.
func componentsByNode(s *Store) map[string]int {
	out := make(map[string]int)
	_ = s.Read(ov, func(v *View) {
		for _, n := range v.Nodes() {
			out[n.ID] = n.Component
		}
	})
	return out
}

// declaredAB: {a,b} declared as component 7 and {c,d} as component 3.
// Only a-b is linked, so a derivation would split c and d.
func declaredAB() model.Dataset {
	return model.Dataset{
		Nodes: []model.NodeRecord{
			{ID: "a", Component: 7},
			{ID: "b", Component: 7},
			{ID: "c", Component: 3},
			{ID: "d", Component: 3},
		},
		Links:      []model.LinkRecord{{Source: "a", Target: "b"}},
		Components: []model.ComponentRecord{{ID: 7}, {ID: 3}},
	}
}
