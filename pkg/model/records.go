package model

import (
	"fmt"
	"strings"
)

// NodeRecord is a node as delivered by a dataset or the expansion service.
type NodeRecord struct {
	ID         string         `json:"id"`
	Label      string         `json:"label,omitempty"`
	Feature    string         `json:"feature,omitempty"`
	Entries    []string       `json:"entries,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Component  int            `json:"component,omitempty"`
}

// LinkRecord is a link as delivered by a dataset or the expansion service.
// Several records for the same pair are collapsed into one Link.
type LinkRecord struct {
	Source      string       `json:"source"`
	Target      string       `json:"target"`
	Connections []Connection `json:"connections,omitempty"`
}

// Key returns the normalised pair of the record.
func (r LinkRecord) Key() LinkKey {
	return NewLinkKey(r.Source, r.Target)
}

// ComponentRecord optionally predeclares a component of a dataset.
type ComponentRecord struct {
	ID      int   `json:"id"`
	Visible *bool `json:"visible,omitempty"`
}

// Dataset is a full view load, the result of a resolved search or navigation.
type Dataset struct {
	Mode             Mode              `json:"mode"`
	Query            string            `json:"query,omitempty"`
	AnchorProperties []string          `json:"anchor_properties,omitempty"`
	Nodes            []NodeRecord      `json:"nodes"`
	Links            []LinkRecord      `json:"links"`
	Components       []ComponentRecord `json:"components,omitempty"`
}

// Expansion is the payload returned by the expansion service.
type Expansion struct {
	Nodes []NodeRecord `json:"nodes"`
	Links []LinkRecord `json:"links"`
}

// ExpandMode selects how candidates relate to the seed set.
type ExpandMode string

const (
	// ExpandOr is the broad expand: a connection to any seed qualifies.
	ExpandOr ExpandMode = "or"
	// ExpandAnd is the narrow expand: a candidate must connect to every seed.
	ExpandAnd ExpandMode = "and"
)

// IsValid reports whether m is a known expand mode.
func (m ExpandMode) IsValid() bool {
	return m == ExpandOr || m == ExpandAnd
}

// ParseExpandMode converts user input into an ExpandMode.
func ParseExpandMode(s string) (ExpandMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "or", "broad", "":
		return ExpandOr, nil
	case "and", "narrow":
		return ExpandAnd, nil
	default:
		return "", fmt.Errorf("unknown expand mode %q (want or/and)", s)
	}
}
