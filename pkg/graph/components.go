package graph

import (
	"sort"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// deriveComponents recomputes connected components from the link topology.
// Component ids survive where possible: each new component claims the smallest
// unclaimed id previously held by one of its members, so toggles and
// selections follow the same subgraph across recomputes.
func (v *View) deriveComponents(topK int) {
	g := simple.NewUndirectedGraph()
	for i := range v.nodes {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, l := range v.links {
		u := int64(v.nodeIndex[l.Source])
		w := int64(v.nodeIndex[l.Target])
		g.SetEdge(g.NewEdge(simple.Node(u), simple.Node(w)))
	}

	groups := topo.ConnectedComponents(g)
	parts := make([][]int, 0, len(groups))
	for _, grp := range groups {
		idx := make([]int, 0, len(grp))
		for _, n := range grp {
			idx = append(idx, int(n.ID()))
		}
		sort.Ints(idx)
		parts = append(parts, idx)
	}
	// gonum iterates nodes in map order; anchor on the earliest member.
	sort.Slice(parts, func(i, j int) bool { return parts[i][0] < parts[j][0] })

	old := v.componentIndex
	claimed := make(map[int]bool, len(parts))
	v.componentIndex = make(map[int]*model.Component, len(parts))
	v.members = make(map[int]map[string]struct{}, len(parts))
	v.components = v.components[:0]

	for _, part := range parts {
		var prior []int
		for _, i := range part {
			if cid := v.nodes[i].Component; cid > 0 {
				if _, ok := old[cid]; ok && !claimed[cid] {
					prior = append(prior, cid)
				}
			}
		}
		var c *model.Component
		if len(prior) > 0 {
			sort.Ints(prior)
			cid := prior[0]
			c = model.NewComponent(cid)
			c.Visible = old[cid].Visible
		} else {
			c = model.NewComponent(v.allocComponentID())
		}
		claimed[c.ID] = true
		set := make(map[string]struct{}, len(part))
		for _, i := range part {
			v.nodes[i].Component = c.ID
			set[v.nodes[i].ID] = struct{}{}
		}
		v.componentIndex[c.ID] = c
		v.members[c.ID] = set
		v.components = append(v.components, c)
	}

	v.pruneSelectedComponents()
	for _, c := range v.components {
		v.summarize(c, topK)
	}
	v.sortComponents()
}

// assignDeclared installs components exactly as a dataset declared them.
func (v *View) assignDeclared(records []model.ComponentRecord, topK int) {
	v.componentIndex = make(map[int]*model.Component)
	v.members = make(map[int]map[string]struct{})
	v.components = v.components[:0]
	for _, r := range records {
		c := model.NewComponent(r.ID)
		if r.Visible != nil {
			c.Visible = *r.Visible
		}
		v.componentIndex[c.ID] = c
		v.members[c.ID] = make(map[string]struct{})
		v.components = append(v.components, c)
	}
	for _, n := range v.nodes {
		if _, ok := v.componentIndex[n.Component]; !ok {
			c := model.NewComponent(n.Component)
			v.componentIndex[c.ID] = c
			v.members[c.ID] = make(map[string]struct{})
			v.components = append(v.components, c)
		}
		v.members[n.Component][n.ID] = struct{}{}
		if n.Component >= v.nextComponent {
			v.nextComponent = n.Component + 1
		}
	}
	for id := range v.componentIndex {
		if id >= v.nextComponent {
			v.nextComponent = id + 1
		}
	}
	for _, c := range v.components {
		v.summarize(c, topK)
	}
	v.sortComponents()
}

// rebuildComponents recomputes membership and summaries from the component
// ids the nodes already carry, keeping every existing id. A component left
// without members is removed when drop reports true for it; emptied says it
// had members before the rebuild.
func (v *View) rebuildComponents(topK int, drop func(c *model.Component, emptied bool) bool) {
	had := make(map[int]bool, len(v.members))
	for id, set := range v.members {
		had[id] = len(set) > 0
	}
	v.members = make(map[int]map[string]struct{}, len(v.componentIndex))
	for id := range v.componentIndex {
		v.members[id] = make(map[string]struct{})
	}
	for _, n := range v.nodes {
		if _, ok := v.componentIndex[n.Component]; !ok {
			c := model.NewComponent(n.Component)
			v.componentIndex[c.ID] = c
			v.members[c.ID] = make(map[string]struct{})
			v.components = append(v.components, c)
		}
		v.members[n.Component][n.ID] = struct{}{}
	}

	kept := v.components[:0]
	for _, c := range v.components {
		if len(v.members[c.ID]) == 0 && drop != nil && drop(c, had[c.ID]) {
			delete(v.componentIndex, c.ID)
			delete(v.members, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	clear(v.components[len(kept):])
	v.components = kept

	v.pruneSelectedComponents()
	for _, c := range v.components {
		v.summarize(c, topK)
	}
	v.sortComponents()
}

func (v *View) allocComponentID() int {
	id := v.nextComponent
	v.nextComponent++
	return id
}

// addSingleton places a freshly inserted node in its own component.
func (v *View) addSingleton(n *model.Node) *model.Component {
	c := model.NewComponent(v.allocComponentID())
	c.NodeCount = 1
	c.LargestNodes = []string{n.ID}
	n.Component = c.ID
	v.componentIndex[c.ID] = c
	v.members[c.ID] = map[string]struct{}{n.ID: {}}
	v.components = append(v.components, c)
	return c
}

// union merges the components of a and b after a link joined them. The
// larger component survives (ties keep the smaller id). It returns the ids of
// nodes whose component changed.
func (v *View) union(a, b int) (survivor int, moved []string) {
	if a == b {
		return a, nil
	}
	ca, cb := v.componentIndex[a], v.componentIndex[b]
	debug.Assert(ca != nil && cb != nil, "union of an unknown component")
	if len(v.members[b]) > len(v.members[a]) || (len(v.members[b]) == len(v.members[a]) && b < a) {
		ca, cb = cb, ca
	}
	for id := range v.members[cb.ID] {
		v.members[ca.ID][id] = struct{}{}
		if n, ok := v.Node(id); ok {
			n.Component = ca.ID
		}
		moved = append(moved, id)
	}
	delete(v.members, cb.ID)
	delete(v.componentIndex, cb.ID)
	for i, c := range v.components {
		if c.ID == cb.ID {
			v.components = append(v.components[:i], v.components[i+1:]...)
			break
		}
	}
	v.pruneSelectedComponents()
	return ca.ID, moved
}

// summarize recomputes NodeCount and the top-k summaries of c, and stamps
// member links with the component id.
func (v *View) summarize(c *model.Component, topK int) {
	set := v.members[c.ID]
	c.NodeCount = len(set)

	nodes := make([]*model.Node, 0, len(set))
	for id := range set {
		if n, ok := v.Node(id); ok {
			nodes = append(nodes, n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Degree != nodes[j].Degree {
			return nodes[i].Degree > nodes[j].Degree
		}
		return v.nodeIndex[nodes[i].ID] < v.nodeIndex[nodes[j].ID]
	})
	c.LargestNodes = c.LargestNodes[:0]
	for _, n := range nodes[:min(topK, len(nodes))] {
		c.LargestNodes = append(c.LargestNodes, n.ID)
	}

	var links []*model.Link
	for _, n := range nodes {
		for nid := range n.Neighbours {
			if nid < n.ID {
				continue // visit each pair once, from its smaller endpoint
			}
			if l, ok := v.Link(n.ID, nid); ok {
				l.Component = c.ID
				links = append(links, l)
			}
		}
	}
	sort.Slice(links, func(i, j int) bool {
		wi, wj := links[i].TotalWeight(), links[j].TotalWeight()
		if wi != wj {
			return wi > wj
		}
		return v.linkIndex[links[i].Key()] < v.linkIndex[links[j].Key()]
	})
	c.LargestConnections = c.LargestConnections[:0]
	for _, l := range links[:min(topK, len(links))] {
		c.LargestConnections = append(c.LargestConnections, l.Key())
	}
}

// sortComponents orders components largest first, ties by id.
func (v *View) sortComponents() {
	sort.SliceStable(v.components, func(i, j int) bool {
		if v.components[i].NodeCount != v.components[j].NodeCount {
			return v.components[i].NodeCount > v.components[j].NodeCount
		}
		return v.components[i].ID < v.components[j].ID
	})
}

func (v *View) pruneSelectedComponents() {
	kept := v.selectedComponents[:0]
	for _, id := range v.selectedComponents {
		if _, ok := v.componentIndex[id]; ok {
			kept = append(kept, id)
		}
	}
	v.selectedComponents = kept
}
