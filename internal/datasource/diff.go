package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// maxListed caps the ids printed per section of a diff summary.
const maxListed = 5

// DatasetDiff describes how a dataset changed between two reads, typically
// across a reload of the same file.
type DatasetDiff struct {
	AddedNodes     []string
	RemovedNodes   []string
	FeatureChanged []FeatureChange
	AddedLinks     []model.LinkKey
	RemovedLinks   []model.LinkKey
	CountA         int
	CountB         int
}

// FeatureChange is a node whose feature differs between the two datasets.
type FeatureChange struct {
	ID       string `json:"id"`
	FeatureA string `json:"feature_a"`
	FeatureB string `json:"feature_b"`
}

// Empty reports whether the datasets hold the same nodes, features and links.
func (d DatasetDiff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.FeatureChanged) == 0 &&
		len(d.AddedLinks) == 0 && len(d.RemovedLinks) == 0
}

// Summary returns a human-readable summary of the differences
func (d DatasetDiff) Summary() string {
	if d.Empty() {
		return fmt.Sprintf("unchanged (%d nodes)", d.CountA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d -> %d nodes\n", d.CountA, d.CountB)
	list := func(verb string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d nodes %s\n", len(ids), verb)
		if len(ids) <= maxListed {
			for _, id := range ids {
				fmt.Fprintf(&b, "    - %s\n", id)
			}
		}
	}
	list("added", d.AddedNodes)
	list("removed", d.RemovedNodes)
	if len(d.FeatureChanged) > 0 {
		fmt.Fprintf(&b, "  - %d nodes changed feature\n", len(d.FeatureChanged))
		if len(d.FeatureChanged) <= maxListed {
			for _, c := range d.FeatureChanged {
				fmt.Fprintf(&b, "    - %s: %s -> %s\n", c.ID, c.FeatureA, c.FeatureB)
			}
		}
	}
	if n := len(d.AddedLinks); n > 0 {
		fmt.Fprintf(&b, "  - %d links added\n", n)
	}
	if n := len(d.RemovedLinks); n > 0 {
		fmt.Fprintf(&b, "  - %d links removed\n", n)
	}
	return b.String()
}

// Diff compares dataset a with dataset b. Id lists are sorted.
func Diff(a, b model.Dataset) DatasetDiff {
	diff := DatasetDiff{CountA: len(a.Nodes), CountB: len(b.Nodes)}

	nodesA := make(map[string]model.NodeRecord, len(a.Nodes))
	for _, n := range a.Nodes {
		nodesA[n.ID] = n
	}
	nodesB := make(map[string]model.NodeRecord, len(b.Nodes))
	for _, n := range b.Nodes {
		nodesB[n.ID] = n
	}

	for id := range nodesA {
		if _, ok := nodesB[id]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}
	for id, nb := range nodesB {
		na, ok := nodesA[id]
		if !ok {
			diff.AddedNodes = append(diff.AddedNodes, id)
			continue
		}
		if na.Feature != nb.Feature {
			diff.FeatureChanged = append(diff.FeatureChanged, FeatureChange{ID: id, FeatureA: na.Feature, FeatureB: nb.Feature})
		}
	}

	linksA := linkKeys(a.Links)
	linksB := linkKeys(b.Links)
	for k := range linksA {
		if _, ok := linksB[k]; !ok {
			diff.RemovedLinks = append(diff.RemovedLinks, k)
		}
	}
	for k := range linksB {
		if _, ok := linksA[k]; !ok {
			diff.AddedLinks = append(diff.AddedLinks, k)
		}
	}

	sort.Strings(diff.AddedNodes)
	sort.Strings(diff.RemovedNodes)
	sort.Slice(diff.FeatureChanged, func(i, j int) bool { return diff.FeatureChanged[i].ID < diff.FeatureChanged[j].ID })
	sortKeys(diff.AddedLinks)
	sortKeys(diff.RemovedLinks)
	return diff
}

// CompareSources loads mode from two sources and diffs them.
func CompareSources(a, b DataSource, mode model.Mode) (DatasetDiff, error) {
	dsA, err := LoadFromSource(a, mode)
	if err != nil {
		return DatasetDiff{}, fmt.Errorf("failed to load %s: %w", a.Path, err)
	}
	dsB, err := LoadFromSource(b, mode)
	if err != nil {
		return DatasetDiff{}, fmt.Errorf("failed to load %s: %w", b.Path, err)
	}
	return Diff(dsA, dsB), nil
}

func linkKeys(links []model.LinkRecord) map[model.LinkKey]struct{} {
	out := make(map[model.LinkKey]struct{}, len(links))
	for _, l := range links {
		out[l.Key()] = struct{}{}
	}
	return out
}

func sortKeys(keys []model.LinkKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A != keys[j].A {
			return keys[i].A < keys[j].A
		}
		return keys[i].B < keys[j].B
	})
}
