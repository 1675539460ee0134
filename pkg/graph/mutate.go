package graph

import (
	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// TrimStats counts what a trim removed.
type TrimStats struct {
	Nodes      int
	Links      int
	Components int
}

// TrimNetwork permanently removes every invisible node, every link that is
// explicitly hidden or lost an endpoint, and every hidden component, then
// re-derives degree, meta, types and components from what is left. Declared
// components keep their ids and lose only emptied members. The
// degree range and self-centric restriction are lifted afterwards since they
// were already applied; the global link toggle is a display switch and is
// neither applied nor reset. There is no undo.
func (s *Store) TrimNetwork(mode model.Mode) (TrimStats, error) {
	defer metrics.Timer(metrics.Trim)()

	var stats TrimStats
	err := s.update("trimNetwork", mode, func(v *View) ([]EventKind, error) {
		before := make([]int, 0, len(v.components))
		for _, c := range v.components {
			before = append(before, c.ID)
		}
		stats.Nodes, stats.Links = v.removeWhere(
			func(n *model.Node) bool { return !n.Visible },
			func(l *model.Link) bool { return l.Hidden },
		)
		v.filter.DegreeActive = false
		v.filter.SelfCentric = SelfCentricOff
		v.filter.MinDegree = 0
		v.recomputeAll(s.opts.TopK)
		for _, id := range before {
			if _, ok := v.componentIndex[id]; !ok {
				stats.Components++
			}
		}

		debug.Log("graph: trimmed %s: -%d nodes, -%d links, -%d components",
			v.mode, stats.Nodes, stats.Links, stats.Components)
		if stats.Nodes == 0 && stats.Links == 0 {
			return []EventKind{EventVisibility}, nil
		}
		return []EventKind{EventStructure, EventVisibility, EventSelection}, nil
	})
	return stats, err
}

// RemoveSelection deletes the selected nodes, visible or not, with every link
// touching them, and clears the node selection. It returns the number of
// nodes removed.
func (s *Store) RemoveSelection(mode model.Mode) (int, error) {
	var removed int
	err := s.update("removeSelection", mode, func(v *View) ([]EventKind, error) {
		if len(v.selectedNodes) == 0 {
			return nil, nil
		}
		removed, _ = v.removeWhere(
			func(n *model.Node) bool { return n.Selected },
			func(*model.Link) bool { return false },
		)
		v.recomputeAll(s.opts.TopK)
		return []EventKind{EventStructure, EventSelection, EventVisibility}, nil
	})
	return removed, err
}

// removeWhere compacts the node and link slices, dropping nodes matched by
// dropNode, links matched by dropLink, and links left without an endpoint.
// Selection is pruned to surviving nodes. Derived data is left stale.
func (v *View) removeWhere(dropNode func(*model.Node) bool, dropLink func(*model.Link) bool) (nodes, links int) {
	gone := make(map[string]struct{})
	kept := v.nodes[:0]
	for _, n := range v.nodes {
		if dropNode(n) {
			gone[n.ID] = struct{}{}
			continue
		}
		kept = append(kept, n)
	}
	clear(v.nodes[len(kept):])
	nodes = len(v.nodes) - len(kept)
	v.nodes = kept

	keptLinks := v.links[:0]
	for _, l := range v.links {
		_, srcGone := gone[l.Source]
		_, dstGone := gone[l.Target]
		if srcGone || dstGone || dropLink(l) {
			continue
		}
		keptLinks = append(keptLinks, l)
	}
	clear(v.links[len(keptLinks):])
	links = len(v.links) - len(keptLinks)
	v.links = keptLinks

	sel := v.selectedNodes[:0]
	for _, id := range v.selectedNodes {
		if _, ok := gone[id]; !ok {
			sel = append(sel, id)
		}
	}
	v.selectedNodes = sel
	v.reindex()
	return nodes, links
}

// MergeStats reports the outcome of MergeExpansion.
type MergeStats struct {
	Stale         bool // the stamp no longer named the active view; nothing was merged
	AddedNodes    int
	UpdatedNodes  int
	AddedLinks    int
	UpdatedLinks  int
	Rejected      []string // returned nodes that did not qualify under the expand mode
	FullRecompute bool
}

// MergeExpansion folds an expansion result for seeds into the view named by
// stamp. If that view is no longer the active one (it was replaced or the
// user switched modes) the result is dropped and Stale is set; this is not an
// error.
//
// New nodes qualify when an expansion link connects them to any seed
// (ExpandOr) or to every seed (ExpandAnd). Nodes already in the view are
// updated in place. A returned link is merged when each endpoint is either
// already in the view or a qualifying new node. A link naming a node that is
// neither in the view nor in the result rejects the whole merge with a
// *MalformedGraphError.
func (s *Store) MergeExpansion(stamp ViewStamp, seeds []string, mode model.ExpandMode, exp model.Expansion) (MergeStats, error) {
	defer metrics.Timer(metrics.ExpansionMerge)()

	var stats MergeStats
	if !mode.IsValid() {
		return stats, validationf("mergeExpansion", "mode", "unknown expand mode %q", mode)
	}
	err := s.update("mergeExpansion", stamp.Mode, func(v *View) ([]EventKind, error) {
		if !s.currentLocked(stamp) {
			stats.Stale = true
			debug.Log("graph: dropped stale expansion for %s view %s", stamp.Mode, stamp.ViewID)
			return nil, nil
		}
		if err := validateNodeRecords("mergeExpansion", exp.Nodes); err != nil {
			return nil, err
		}
		pending := make(map[string]struct{}, len(exp.Nodes))
		for _, r := range exp.Nodes {
			pending[r.ID] = struct{}{}
		}
		if err := v.validateLinkRecords(exp.Links, pending); err != nil {
			return nil, err
		}

		qualified := v.qualify(seeds, mode, exp)
		var nodes []model.NodeRecord
		for _, r := range exp.Nodes {
			if _, ok := v.nodeIndex[r.ID]; ok {
				nodes = append(nodes, r)
				continue
			}
			if _, ok := qualified[r.ID]; ok {
				nodes = append(nodes, r)
				continue
			}
			stats.Rejected = append(stats.Rejected, r.ID)
		}

		admitted := func(id string) bool {
			if _, ok := v.nodeIndex[id]; ok {
				return true
			}
			_, ok := qualified[id]
			return ok
		}
		var links []model.LinkRecord
		for _, r := range exp.Links {
			if admitted(r.Source) && admitted(r.Target) {
				links = append(links, r)
			}
		}

		cs := newChangeSet()
		stats.AddedNodes, stats.UpdatedNodes = v.upsertNodes(nodes, cs)
		stats.AddedLinks, stats.UpdatedLinks = v.upsertLinks(links, cs)
		stats.FullRecompute = v.finish(cs, s.opts)

		debug.Log("graph: merged %s expansion into %s: +%d nodes (%d updated, %d rejected), +%d links",
			mode, v.mode, stats.AddedNodes, stats.UpdatedNodes, len(stats.Rejected), stats.AddedLinks)
		return []EventKind{EventStructure}, nil
	})
	return stats, err
}

// qualify returns the ids of new nodes in exp that the expand mode admits.
// Only seeds present in the view count; with none, nothing qualifies.
func (v *View) qualify(seeds []string, mode model.ExpandMode, exp model.Expansion) map[string]struct{} {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		if _, ok := v.nodeIndex[id]; ok {
			seedSet[id] = struct{}{}
		}
	}
	out := make(map[string]struct{})
	if len(seedSet) == 0 {
		return out
	}

	touched := make(map[string]map[string]struct{})
	mark := func(candidate, seed string) {
		if _, isSeed := seedSet[seed]; !isSeed {
			return
		}
		if touched[candidate] == nil {
			touched[candidate] = make(map[string]struct{})
		}
		touched[candidate][seed] = struct{}{}
	}
	for _, r := range exp.Links {
		mark(r.Source, r.Target)
		mark(r.Target, r.Source)
	}

	for _, r := range exp.Nodes {
		if _, exists := v.nodeIndex[r.ID]; exists {
			continue
		}
		hit := len(touched[r.ID])
		switch mode {
		case model.ExpandAnd:
			if hit == len(seedSet) {
				out[r.ID] = struct{}{}
			}
		default:
			if hit > 0 {
				out[r.ID] = struct{}{}
			}
		}
	}
	return out
}
