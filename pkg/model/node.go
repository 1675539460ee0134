// Package model defines the graph entities shared by the store, the engines and
// the dataset readers: nodes, links, components and the wire records datasets and
// the expansion service speak.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Mode identifies one of the two aggregation levels of a dataset.
type Mode string

const (
	// ModeOverview is the co-occurrence graph.
	ModeOverview Mode = "overview"
	// ModeDetail is the entity-level graph.
	ModeDetail Mode = "detail"
)

// Modes lists every view mode in a stable order.
func Modes() []Mode {
	return []Mode{ModeOverview, ModeDetail}
}

// IsValid reports whether m is a known view mode.
func (m Mode) IsValid() bool {
	return m == ModeOverview || m == ModeDetail
}

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeOverview:
		return ModeOverview, nil
	case ModeDetail:
		return ModeDetail, nil
	default:
		return "", fmt.Errorf("unknown view mode %q (want overview or detail)", s)
	}
}

// Position is a layout coordinate written by the physics collaborator.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Node is a vertex of a view.
//
// Degree is a cache of len(Neighbours) and is kept in sync by the store. Color is
// derived from the active colour scheme and never read back as input.
type Node struct {
	ID         string
	Label      string
	Feature    string
	Degree     int
	Neighbours map[string]struct{}
	Entries    []string
	Properties map[string]any
	Component  int

	Visible  bool
	Selected bool

	Position    Position
	HasPosition bool
	Pinned      bool

	Color string
}

// NewNode creates a visible node with an empty neighbour set.
func NewNode(id, label, feature string) *Node {
	return &Node{
		ID:         id,
		Label:      label,
		Feature:    feature,
		Neighbours: make(map[string]struct{}),
		Visible:    true,
	}
}

// HasNeighbour reports whether id is adjacent to n.
func (n *Node) HasNeighbour(id string) bool {
	_, ok := n.Neighbours[id]
	return ok
}

// NeighbourIDs returns the neighbour ids in lexical order.
func (n *Node) NeighbourIDs() []string {
	ids := make([]string, 0, len(n.Neighbours))
	for id := range n.Neighbours {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Property returns a node attribute by name. The built-in attributes id, label,
// feature, degree and component shadow entries in Properties.
func (n *Node) Property(name string) (any, bool) {
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

// AddEntries appends source-record ids that are not yet present.
func (n *Node) AddEntries(entries []string) {
	if len(entries) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(n.Entries))
	for _, e := range n.Entries {
		seen[e] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		n.Entries = append(n.Entries, e)
	}
}
