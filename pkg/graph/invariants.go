package graph

import (
	"errors"
	"fmt"
)

// CheckInvariants verifies the derived state of v against its nodes and
// links and returns every violation joined into one error.
func (v *View) CheckInvariants() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if len(v.nodeIndex) != len(v.nodes) {
		fail("node index has %d entries for %d nodes", len(v.nodeIndex), len(v.nodes))
	}
	maxDegree := 0
	members := 0
	for i, n := range v.nodes {
		if v.nodeIndex[n.ID] != i {
			fail("node %q indexed at %d, stored at %d", n.ID, v.nodeIndex[n.ID], i)
		}
		if n.Degree != len(n.Neighbours) {
			fail("node %q degree %d != %d neighbours", n.ID, n.Degree, len(n.Neighbours))
		}
		maxDegree = max(maxDegree, n.Degree)
		for nid := range n.Neighbours {
			if _, ok := v.Link(n.ID, nid); !ok {
				fail("node %q lists neighbour %q without a link", n.ID, nid)
			}
		}
		if _, ok := v.members[n.Component][n.ID]; !ok {
			fail("node %q not a member of its component %d", n.ID, n.Component)
		}
	}
	if v.meta.MaxDegree != maxDegree {
		fail("meta.MaxDegree %d, actual %d", v.meta.MaxDegree, maxDegree)
	}

	for i, l := range v.links {
		if v.linkIndex[l.Key()] != i {
			fail("link %s indexed at %d, stored at %d", l.Key(), v.linkIndex[l.Key()], i)
		}
		src, okS := v.Node(l.Source)
		dst, okT := v.Node(l.Target)
		if !okS || !okT {
			fail("link %s has a missing endpoint", l.Key())
			continue
		}
		if l.Source == l.Target {
			fail("self link on %q", l.Source)
		}
		if !src.HasNeighbour(l.Target) || !dst.HasNeighbour(l.Source) {
			fail("link %s missing from neighbour sets", l.Key())
		}
		want := !l.Hidden && v.filter.LinksVisible && src.Visible && dst.Visible
		if l.Visible != want {
			fail("link %s visible=%v, want %v", l.Key(), l.Visible, want)
		}
	}

	if len(v.componentIndex) != len(v.components) {
		fail("component index has %d entries for %d components", len(v.componentIndex), len(v.components))
	}
	for i, c := range v.components {
		if c.ID <= 0 {
			fail("component id %d is not positive", c.ID)
		}
		if c.NodeCount != len(v.members[c.ID]) {
			fail("component %d count %d != %d members", c.ID, c.NodeCount, len(v.members[c.ID]))
		}
		members += len(v.members[c.ID])
		if i > 0 && v.components[i-1].NodeCount < c.NodeCount {
			fail("components not sorted largest first at %d", i)
		}
	}
	if members != len(v.nodes) {
		fail("components hold %d members for %d nodes", members, len(v.nodes))
	}

	types := 0
	for _, c := range v.types {
		types += c
	}
	if types != len(v.nodes) {
		fail("types histogram counts %d nodes, have %d", types, len(v.nodes))
	}

	for _, id := range v.selectedNodes {
		n, ok := v.Node(id)
		if !ok {
			fail("selected node %q does not exist", id)
		} else if !n.Selected {
			fail("selected node %q not flagged", id)
		}
	}
	for _, id := range v.selectedComponents {
		if _, ok := v.componentIndex[id]; !ok {
			fail("selected component %d does not exist", id)
		}
	}
	return errors.Join(errs...)
}
