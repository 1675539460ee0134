package graph

import (
	"sort"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// SelfCentric restricts visibility to the N-hop ego network of the selection.
type SelfCentric int

const (
	SelfCentricOff SelfCentric = 0
	SelfCentric1   SelfCentric = 1
	SelfCentric2   SelfCentric = 2
	SelfCentric3   SelfCentric = 3
)

// IsValid reports whether s is off or a supported hop count.
func (s SelfCentric) IsValid() bool {
	return s >= SelfCentricOff && s <= SelfCentric3
}

// Filter is the visibility state of a view. Node visibility is the AND of the
// degree range, the component toggle and the self-centric restriction.
type Filter struct {
	MinDegree    int
	MaxDegree    int
	DegreeActive bool // false means every degree passes
	SelfCentric  SelfCentric
	LinksVisible bool // global link toggle
}

// View is the canonical graph of one mode. All fields are owned by the Store;
// callers receive a *View only inside Store.Read and must not mutate it.
type View struct {
	id   string
	mode model.Mode

	nodes     []*model.Node
	nodeIndex map[string]int

	links     []*model.Link
	linkIndex map[model.LinkKey]int

	components     []*model.Component
	componentIndex map[int]*model.Component
	members        map[int]map[string]struct{}
	nextComponent  int
	declared       bool // component membership came from the dataset, not the topology

	selectedNodes      []string
	selectedComponents []int

	meta   model.Meta
	types  map[string]int
	filter Filter
}

func newView(id string, mode model.Mode) *View {
	return &View{
		id:             id,
		mode:           mode,
		nodeIndex:      make(map[string]int),
		linkIndex:      make(map[model.LinkKey]int),
		componentIndex: make(map[int]*model.Component),
		members:        make(map[int]map[string]struct{}),
		nextComponent:  1,
		types:          make(map[string]int),
		filter:         Filter{LinksVisible: true},
	}
}

// ID is the view identity; every load produces a new one.
func (v *View) ID() string { return v.id }

// Mode returns the aggregation level of the view.
func (v *View) Mode() model.Mode { return v.mode }

// Nodes returns the nodes in insertion order.
func (v *View) Nodes() []*model.Node { return v.nodes }

// Links returns the links in insertion order.
func (v *View) Links() []*model.Link { return v.links }

// Components returns the components, largest first.
func (v *View) Components() []*model.Component { return v.components }

// Meta returns view-wide metadata.
func (v *View) Meta() model.Meta { return v.meta }

// Filter returns the current visibility filter.
func (v *View) Filter() Filter { return v.filter }

// Node looks up a node by id.
func (v *View) Node(id string) (*model.Node, bool) {
	i, ok := v.nodeIndex[id]
	if !ok {
		return nil, false
	}
	return v.nodes[i], true
}

// Link looks up the link between a and b in either direction.
func (v *View) Link(a, b string) (*model.Link, bool) {
	i, ok := v.linkIndex[model.NewLinkKey(a, b)]
	if !ok {
		return nil, false
	}
	return v.links[i], true
}

// Component looks up a component by id.
func (v *View) Component(id int) (*model.Component, bool) {
	c, ok := v.componentIndex[id]
	return c, ok
}

// NeighbourNodes materialises the neighbour objects of id in insertion order.
func (v *View) NeighbourNodes(id string) []*model.Node {
	n, ok := v.Node(id)
	if !ok {
		return nil
	}
	out := make([]*model.Node, 0, len(n.Neighbours))
	for nid := range n.Neighbours {
		if nb, ok := v.Node(nid); ok {
			out = append(out, nb)
		}
	}
	v.sortByIndex(out)
	return out
}

// SelectedNodes returns the selected node ids in selection order.
func (v *View) SelectedNodes() []string {
	return append([]string(nil), v.selectedNodes...)
}

// SelectedComponents returns the selected component ids in selection order.
func (v *View) SelectedComponents() []int {
	return append([]int(nil), v.selectedComponents...)
}

// Types returns a copy of the feature histogram.
func (v *View) Types() map[string]int {
	out := make(map[string]int, len(v.types))
	for k, c := range v.types {
		out[k] = c
	}
	return out
}

// VisibleNodeIDs returns the ids of visible nodes in insertion order.
func (v *View) VisibleNodeIDs() []string {
	var ids []string
	for _, n := range v.nodes {
		if n.Visible {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func (v *View) sortByIndex(nodes []*model.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return v.nodeIndex[nodes[i].ID] < v.nodeIndex[nodes[j].ID]
	})
}

func (v *View) sortIDsByIndex(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		return v.nodeIndex[ids[i]] < v.nodeIndex[ids[j]]
	})
}

// --- derivation -----------------------------------------------------------

// recomputeAll rebuilds every derived field from nodes and links: neighbour
// sets, degree, meta.MaxDegree, types, components and visibility.
// Components are derived from the topology unless the dataset declared them;
// declared membership is kept and components emptied by a removal are
// dropped, as are empty hidden ones.
func (v *View) recomputeAll(topK int) {
	v.recomputeStructure()
	if v.declared {
		v.rebuildComponents(topK, func(c *model.Component, emptied bool) bool {
			return emptied || !c.Visible
		})
	} else {
		v.deriveComponents(topK)
	}
	v.recomputeVisibility()
}

// recomputeInPlace is the full-recompute fallback of an incremental update.
// Updates only ever merge components, and the merges already happened, so
// membership is rebuilt from the ids the nodes carry rather than re-derived.
// The result matches the incremental path exactly.
func (v *View) recomputeInPlace(topK int) {
	v.recomputeStructure()
	v.rebuildComponents(topK, nil)
	v.recomputeVisibility()
}

// recomputeStructure rebuilds neighbour sets, degrees and the types
// histogram.
func (v *View) recomputeStructure() {
	for _, n := range v.nodes {
		n.Neighbours = make(map[string]struct{})
	}
	for _, l := range v.links {
		v.nodes[v.nodeIndex[l.Source]].Neighbours[l.Target] = struct{}{}
		v.nodes[v.nodeIndex[l.Target]].Neighbours[l.Source] = struct{}{}
	}
	v.recomputeDegrees()
	v.recomputeTypes()
}

func (v *View) recomputeDegrees() {
	v.meta.MaxDegree = 0
	for _, n := range v.nodes {
		n.Degree = len(n.Neighbours)
		if n.Degree > v.meta.MaxDegree {
			v.meta.MaxDegree = n.Degree
		}
	}
	v.syncDegreeRange()
}

// syncDegreeRange keeps an inactive degree range spanning every degree.
func (v *View) syncDegreeRange() {
	if !v.filter.DegreeActive {
		v.filter.MinDegree, v.filter.MaxDegree = 0, v.meta.MaxDegree
	}
}

func (v *View) recomputeTypes() {
	v.types = make(map[string]int)
	for _, n := range v.nodes {
		v.types[n.Feature]++
	}
}

// reindex rebuilds the id→slot maps after slices were compacted.
func (v *View) reindex() {
	v.nodeIndex = make(map[string]int, len(v.nodes))
	for i, n := range v.nodes {
		v.nodeIndex[n.ID] = i
	}
	v.linkIndex = make(map[model.LinkKey]int, len(v.links))
	for i, l := range v.links {
		v.linkIndex[l.Key()] = i
	}
}

// degreePasses applies the degree range.
func (v *View) degreePasses(n *model.Node) bool {
	f := v.filter
	return !f.DegreeActive || (n.Degree >= f.MinDegree && n.Degree <= f.MaxDegree)
}

func (v *View) componentPasses(n *model.Node) bool {
	c, ok := v.componentIndex[n.Component]
	return !ok || c.Visible
}

// egoSet returns the selection plus every node within the self-centric hop
// count, or nil when the restriction is inactive.
func (v *View) egoSet() map[string]struct{} {
	if v.filter.SelfCentric == SelfCentricOff || len(v.selectedNodes) == 0 {
		return nil
	}
	set := make(map[string]struct{})
	for _, id := range v.selectedNodes {
		if _, ok := v.nodeIndex[id]; ok {
			set[id] = struct{}{}
		}
	}
	for _, hop := range v.bfs(v.selectedNodes, int(v.filter.SelfCentric)) {
		for _, id := range hop {
			set[id] = struct{}{}
		}
	}
	return set
}

// recomputeVisibility re-derives node and link visibility for the whole view.
func (v *View) recomputeVisibility() {
	ego := v.egoSet()
	for _, n := range v.nodes {
		vis := v.degreePasses(n) && v.componentPasses(n)
		if vis && ego != nil {
			_, vis = ego[n.ID]
		}
		n.Visible = vis
	}
	for _, l := range v.links {
		v.refreshLink(l)
	}
}

// refreshNodes re-derives visibility for a subset of nodes and their links.
// Falls back to a full pass when the self-centric restriction is on, since a
// single node can change the ego network.
func (v *View) refreshNodes(ids map[string]struct{}) {
	if v.filter.SelfCentric != SelfCentricOff {
		v.recomputeVisibility()
		return
	}
	for id := range ids {
		n, ok := v.Node(id)
		if !ok {
			continue
		}
		n.Visible = v.degreePasses(n) && v.componentPasses(n)
	}
	for id := range ids {
		n, ok := v.Node(id)
		if !ok {
			continue
		}
		for nid := range n.Neighbours {
			if l, ok := v.Link(id, nid); ok {
				v.refreshLink(l)
			}
		}
	}
}

func (v *View) refreshLink(l *model.Link) {
	src, okS := v.Node(l.Source)
	dst, okT := v.Node(l.Target)
	l.Visible = okS && okT && !l.Hidden && v.filter.LinksVisible && src.Visible && dst.Visible
}
