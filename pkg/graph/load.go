package graph

import (
	"maps"

	"github.com/google/uuid"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// ReplaceView installs ds as the new view of mode. The dataset is validated
// in full first; on any integrity problem a *MalformedGraphError is returned
// and the previous view stays in place. A successful load gets a new view
// identity, which invalidates every outstanding ViewStamp for mode.
func (s *Store) ReplaceView(mode model.Mode, ds model.Dataset) error {
	defer metrics.Timer(metrics.GraphLoad)()

	if !mode.IsValid() {
		return validationf("replaceView", "mode", "unknown view mode %q", mode)
	}
	if ds.Mode != "" && ds.Mode != mode {
		return validationf("replaceView", "mode", "dataset is for %s, not %s", ds.Mode, mode)
	}

	v, err := buildView(uuid.NewString(), mode, ds, s.opts)
	if err != nil {
		debug.Log("graph: rejected %s load: %v", mode, err)
		return err
	}

	s.mu.Lock()
	s.views[mode] = v
	s.mu.Unlock()

	metrics.ObserveView(string(mode), len(v.nodes), len(v.links))
	debug.Log("graph: loaded %s view %s: %d nodes, %d links, %d components",
		mode, v.id, len(v.nodes), len(v.links), len(v.components))
	s.emit(Event{Kind: EventLoaded, Mode: mode, ViewID: v.id})
	return nil
}

func buildView(id string, mode model.Mode, ds model.Dataset, opts Options) (*View, error) {
	bad := &MalformedGraphError{Mode: mode}

	seen := make(map[string]struct{}, len(ds.Nodes))
	declared := len(ds.Components) > 0
	for _, r := range ds.Nodes {
		if r.Component != 0 {
			declared = true
		}
	}

	componentIDs := make(map[int]struct{}, len(ds.Components))
	for _, c := range ds.Components {
		if c.ID <= 0 {
			bad.addf("component id %d is not positive", c.ID)
			continue
		}
		if _, dup := componentIDs[c.ID]; dup {
			bad.addf("duplicate component id %d", c.ID)
		}
		componentIDs[c.ID] = struct{}{}
	}

	for i, r := range ds.Nodes {
		if r.ID == "" {
			bad.addf("node #%d has no id", i)
			continue
		}
		if _, dup := seen[r.ID]; dup {
			bad.addf("duplicate node id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		if !declared {
			continue
		}
		switch {
		case r.Component <= 0:
			bad.addf("node %q has no component", r.ID)
		case len(componentIDs) > 0:
			if _, ok := componentIDs[r.Component]; !ok {
				bad.addf("node %q references unknown component %d", r.ID, r.Component)
			}
		}
	}

	for _, r := range ds.Links {
		_, okS := seen[r.Source]
		_, okT := seen[r.Target]
		switch {
		case !okS || !okT:
			bad.Dangling = append(bad.Dangling, r.Key())
		case r.Source == r.Target:
			bad.addf("self link on %q", r.Source)
		}
	}

	if !bad.empty() {
		return nil, bad
	}

	v := newView(id, mode)
	v.meta.Query = ds.Query
	v.meta.AnchorProperties = append([]string(nil), ds.AnchorProperties...)

	for _, r := range ds.Nodes {
		n := nodeFromRecord(r)
		v.nodeIndex[n.ID] = len(v.nodes)
		v.nodes = append(v.nodes, n)
	}
	for _, r := range ds.Links {
		v.insertLink(r)
	}

	v.declared = declared
	if declared {
		v.recomputeDegrees()
		v.recomputeTypes()
		v.assignDeclared(ds.Components, opts.TopK)
		v.recomputeVisibility()
	} else {
		v.recomputeAll(opts.TopK)
	}
	return v, nil
}

func nodeFromRecord(r model.NodeRecord) *model.Node {
	n := model.NewNode(r.ID, r.Label, r.Feature)
	if n.Label == "" {
		n.Label = r.ID
	}
	n.Entries = append([]string(nil), r.Entries...)
	if len(r.Properties) > 0 {
		n.Properties = maps.Clone(r.Properties)
	}
	n.Component = r.Component
	return n
}

// insertLink adds r to the view, collapsing it onto an existing link for the
// same pair. Neighbour sets are updated; degrees are left to the caller.
// It reports whether a new Link was created.
func (v *View) insertLink(r model.LinkRecord) (created bool) {
	key := r.Key()
	if i, ok := v.linkIndex[key]; ok {
		v.links[i].AddConnections(r.Connections)
		return false
	}
	l := &model.Link{Source: r.Source, Target: r.Target}
	l.AddConnections(r.Connections)
	v.linkIndex[key] = len(v.links)
	v.links = append(v.links, l)
	v.nodes[v.nodeIndex[r.Source]].Neighbours[r.Target] = struct{}{}
	v.nodes[v.nodeIndex[r.Target]].Neighbours[r.Source] = struct{}{}
	return true
}
