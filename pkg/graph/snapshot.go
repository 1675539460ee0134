package graph

import (
	"maps"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// RenderNode is the per-frame view of a node handed to renderers. Fx/Fy/Fz
// are set only for pinned nodes.
type RenderNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Feature    string         `json:"feature"`
	Degree     int            `json:"degree"`
	Component  int            `json:"component"`
	Visible    bool           `json:"visible"`
	Selected   bool           `json:"selected"`
	Color      string         `json:"color,omitempty"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Z          float64        `json:"z"`
	Fx         *float64       `json:"fx,omitempty"`
	Fy         *float64       `json:"fy,omitempty"`
	Fz         *float64       `json:"fz,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Property mirrors model.Node.Property for snapshot consumers.
func (n RenderNode) Property(name string) (any, bool) {
	switch name {
	case "id":
		return n.ID, true
	case "label":
		return n.Label, true
	case "feature", "type":
		return n.Feature, true
	case "degree":
		return n.Degree, true
	case "component":
		return n.Component, true
	}
	v, ok := n.Properties[name]
	return v, ok
}

// RenderLink is the per-frame view of a link.
type RenderLink struct {
	Source      string             `json:"source"`
	Target      string             `json:"target"`
	Component   int                `json:"component"`
	Visible     bool               `json:"visible"`
	Color       string             `json:"color,omitempty"`
	Weight      float64            `json:"weight"`
	Connections []model.Connection `json:"connections,omitempty"`
}

// Key returns the normalised pair key.
func (l RenderLink) Key() model.LinkKey { return model.NewLinkKey(l.Source, l.Target) }

// RenderComponent is a component summary.
type RenderComponent struct {
	ID                 int      `json:"id"`
	NodeCount          int      `json:"node_count"`
	LargestNodes       []string `json:"largest_nodes,omitempty"`
	LargestConnections []string `json:"largest_connections,omitempty"`
	Visible            bool     `json:"visible"`
}

// RenderSnapshot is a deep copy of a view, safe to use without the store
// lock.
type RenderSnapshot struct {
	Mode               model.Mode        `json:"mode"`
	ViewID             string            `json:"view_id"`
	Meta               model.Meta        `json:"meta"`
	Types              map[string]int    `json:"types"`
	Nodes              []RenderNode      `json:"nodes"`
	Links              []RenderLink      `json:"links"`
	Components         []RenderComponent `json:"components"`
	SelectedNodes      []string          `json:"selected_nodes,omitempty"`
	SelectedComponents []int             `json:"selected_components,omitempty"`
}

// JSON encodes the snapshot.
func (rs RenderSnapshot) JSON() ([]byte, error) {
	return json.Marshal(rs)
}

// Snapshot copies the view of mode.
func (s *Store) Snapshot(mode model.Mode) (RenderSnapshot, error) {
	var rs RenderSnapshot
	err := s.Read(mode, func(v *View) {
		rs = v.snapshot()
	})
	return rs, err
}

func (v *View) snapshot() RenderSnapshot {
	rs := RenderSnapshot{
		Mode:               v.mode,
		ViewID:             v.id,
		Meta:               v.meta,
		Types:              v.Types(),
		Nodes:              make([]RenderNode, 0, len(v.nodes)),
		Links:              make([]RenderLink, 0, len(v.links)),
		Components:         make([]RenderComponent, 0, len(v.components)),
		SelectedNodes:      v.SelectedNodes(),
		SelectedComponents: v.SelectedComponents(),
	}
	rs.Meta.AnchorProperties = append([]string(nil), v.meta.AnchorProperties...)

	for _, n := range v.nodes {
		rn := RenderNode{
			ID:         n.ID,
			Label:      n.Label,
			Feature:    n.Feature,
			Degree:     n.Degree,
			Component:  n.Component,
			Visible:    n.Visible,
			Selected:   n.Selected,
			Color:      n.Color,
			X:          n.Position.X,
			Y:          n.Position.Y,
			Z:          n.Position.Z,
			Properties: maps.Clone(n.Properties),
		}
		if n.Pinned {
			x, y, z := n.Position.X, n.Position.Y, n.Position.Z
			rn.Fx, rn.Fy, rn.Fz = &x, &y, &z
		}
		rs.Nodes = append(rs.Nodes, rn)
	}
	for _, l := range v.links {
		rs.Links = append(rs.Links, RenderLink{
			Source:      l.Source,
			Target:      l.Target,
			Component:   l.Component,
			Visible:     l.Visible,
			Color:       l.Color,
			Weight:      l.TotalWeight(),
			Connections: append([]model.Connection(nil), l.Connections...),
		})
	}
	for _, c := range v.components {
		rc := RenderComponent{
			ID:           c.ID,
			NodeCount:    c.NodeCount,
			LargestNodes: append([]string(nil), c.LargestNodes...),
			Visible:      c.Visible,
		}
		for _, k := range c.LargestConnections {
			rc.LargestConnections = append(rc.LargestConnections, k.String())
		}
		rs.Components = append(rs.Components, rc)
	}
	return rs
}

// ApplyColors writes derived colours onto nodes and links. Elements missing
// from the maps lose their colour.
func (s *Store) ApplyColors(mode model.Mode, nodeColors map[string]string, linkColors map[model.LinkKey]string) error {
	return s.update("applyColors", mode, func(v *View) ([]EventKind, error) {
		for _, n := range v.nodes {
			n.Color = nodeColors[n.ID]
		}
		for _, l := range v.links {
			l.Color = linkColors[l.Key()]
		}
		return []EventKind{EventColors}, nil
	})
}

// SetPositions stores positions reported by the physics engine. Pinned nodes
// keep their position; unknown ids are ignored.
func (s *Store) SetPositions(mode model.Mode, positions map[string]model.Position) error {
	return s.update("setPositions", mode, func(v *View) ([]EventKind, error) {
		for id, p := range positions {
			n, ok := v.Node(id)
			if !ok || n.Pinned {
				continue
			}
			n.Position = p
			n.HasPosition = true
		}
		return []EventKind{EventLayout}, nil
	})
}

// SetPinned pins or releases ids at their current position. Unknown ids are
// rejected.
func (s *Store) SetPinned(mode model.Mode, ids []string, pinned bool) error {
	return s.update("setPinned", mode, func(v *View) ([]EventKind, error) {
		for _, id := range ids {
			if _, ok := v.Node(id); !ok {
				return nil, validationf("setPinned", "ids", "unknown node %q", id)
			}
		}
		for _, id := range ids {
			n, _ := v.Node(id)
			n.Pinned = pinned
		}
		return []EventKind{EventLayout}, nil
	})
}

// ClearLayout releases every pin and forgets every position.
func (s *Store) ClearLayout(mode model.Mode) error {
	return s.update("clearLayout", mode, func(v *View) ([]EventKind, error) {
		for _, n := range v.nodes {
			n.Pinned = false
			n.HasPosition = false
			n.Position = model.Position{}
		}
		return []EventKind{EventLayout}, nil
	})
}

// PinnedNodes returns the ids of pinned nodes in insertion order.
func (v *View) PinnedNodes() []string {
	var ids []string
	for _, n := range v.nodes {
		if n.Pinned {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
