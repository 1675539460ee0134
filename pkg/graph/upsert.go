package graph

import (
	"maps"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// UpsertStats summarises an incremental update.
type UpsertStats struct {
	AddedNodes    int
	UpdatedNodes  int
	AddedLinks    int
	UpdatedLinks  int
	FullRecompute bool // derived data was rebuilt from scratch
}

// changeSet collects what an incremental update touched.
type changeSet struct {
	nodes      map[string]struct{}
	components map[int]struct{}
}

func newChangeSet() *changeSet {
	return &changeSet{
		nodes:      make(map[string]struct{}),
		components: make(map[int]struct{}),
	}
}

func (cs *changeSet) touch(ids ...string) {
	for _, id := range ids {
		cs.nodes[id] = struct{}{}
	}
}

// UpsertNodes inserts new nodes and updates existing ones in place (label,
// feature, entries, properties). New nodes start in their own component.
func (s *Store) UpsertNodes(mode model.Mode, records []model.NodeRecord) (UpsertStats, error) {
	var stats UpsertStats
	err := s.update("upsertNodes", mode, func(v *View) ([]EventKind, error) {
		if err := validateNodeRecords("upsertNodes", records); err != nil {
			return nil, err
		}
		cs := newChangeSet()
		stats.AddedNodes, stats.UpdatedNodes = v.upsertNodes(records, cs)
		stats.FullRecompute = v.finish(cs, s.opts)
		return []EventKind{EventStructure}, nil
	})
	return stats, err
}

// UpsertLinks adds links, collapsing records onto existing pairs. Every
// endpoint must already exist; otherwise the whole batch is rejected.
func (s *Store) UpsertLinks(mode model.Mode, records []model.LinkRecord) (UpsertStats, error) {
	var stats UpsertStats
	err := s.update("upsertLinks", mode, func(v *View) ([]EventKind, error) {
		if err := v.validateLinkRecords(records, nil); err != nil {
			return nil, err
		}
		cs := newChangeSet()
		stats.AddedLinks, stats.UpdatedLinks = v.upsertLinks(records, cs)
		stats.FullRecompute = v.finish(cs, s.opts)
		return []EventKind{EventStructure}, nil
	})
	return stats, err
}

func validateNodeRecords(op string, records []model.NodeRecord) error {
	for i, r := range records {
		if r.ID == "" {
			return validationf(op, "id", "record #%d has no id", i)
		}
	}
	return nil
}

// validateLinkRecords checks endpoints against the view plus the ids in
// pending (nodes about to be inserted by the same batch).
func (v *View) validateLinkRecords(records []model.LinkRecord, pending map[string]struct{}) error {
	bad := &MalformedGraphError{Mode: v.mode}
	known := func(id string) bool {
		if _, ok := v.nodeIndex[id]; ok {
			return true
		}
		_, ok := pending[id]
		return ok
	}
	for _, r := range records {
		switch {
		case !known(r.Source) || !known(r.Target):
			bad.Dangling = append(bad.Dangling, r.Key())
		case r.Source == r.Target:
			bad.addf("self link on %q", r.Source)
		}
	}
	if bad.empty() {
		return nil
	}
	return bad
}

func (v *View) upsertNodes(records []model.NodeRecord, cs *changeSet) (added, updated int) {
	for _, r := range records {
		n, ok := v.Node(r.ID)
		if !ok {
			n = nodeFromRecord(r)
			n.Component = 0
			v.nodeIndex[n.ID] = len(v.nodes)
			v.nodes = append(v.nodes, n)
			v.types[n.Feature]++
			c := v.addSingleton(n)
			cs.components[c.ID] = struct{}{}
			cs.touch(n.ID)
			added++
			continue
		}

		if r.Label != "" {
			n.Label = r.Label
		}
		if r.Feature != "" && r.Feature != n.Feature {
			v.types[n.Feature]--
			if v.types[n.Feature] <= 0 {
				delete(v.types, n.Feature)
			}
			n.Feature = r.Feature
			v.types[n.Feature]++
		}
		n.AddEntries(r.Entries)
		if len(r.Properties) > 0 {
			if n.Properties == nil {
				n.Properties = make(map[string]any, len(r.Properties))
			}
			maps.Copy(n.Properties, r.Properties)
		}
		cs.touch(n.ID)
		updated++
	}
	return added, updated
}

func (v *View) upsertLinks(records []model.LinkRecord, cs *changeSet) (added, updated int) {
	for _, r := range records {
		if !v.insertLink(r) {
			l, _ := v.Link(r.Source, r.Target)
			cs.components[l.Component] = struct{}{}
			updated++
			continue
		}
		added++
		cs.touch(r.Source, r.Target)
		src, _ := v.Node(r.Source)
		dst, _ := v.Node(r.Target)
		survivor, moved := v.union(src.Component, dst.Component)
		cs.touch(moved...)
		cs.components[survivor] = struct{}{}
	}
	return added, updated
}

// finish re-derives what cs touched. When more than the configured fraction
// of nodes changed, everything is recomputed instead. It reports whether the
// full path was taken.
func (v *View) finish(cs *changeSet, opts Options) bool {
	if len(cs.nodes) == 0 && len(cs.components) == 0 {
		return false
	}
	if float64(len(cs.nodes)) > opts.RecomputeThreshold*float64(len(v.nodes)) {
		debug.Log("graph: %d/%d nodes changed, full recompute", len(cs.nodes), len(v.nodes))
		v.recomputeInPlace(opts.TopK)
		return true
	}

	for id := range cs.nodes {
		n, ok := v.Node(id)
		if !ok {
			continue
		}
		n.Degree = len(n.Neighbours)
		if n.Degree > v.meta.MaxDegree {
			v.meta.MaxDegree = n.Degree
		}
		cs.components[n.Component] = struct{}{}
	}
	v.syncDegreeRange()
	for cid := range cs.components {
		if c, ok := v.componentIndex[cid]; ok {
			v.summarize(c, opts.TopK)
		}
	}
	v.sortComponents()
	v.refreshNodes(cs.nodes)
	return false
}
