// Package testutil provides graph fixture generators and assertions shared by
// package tests. All generators are deterministic for a given seed.
package testutil

import (
	"fmt"
	"math/rand"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// GraphFixture is an abstract undirected graph: node ids plus index pairs.
type GraphFixture struct {
	Description string   `json:"description"`
	Nodes       []string `json:"nodes"`
	Edges       [][2]int `json:"edges"`
	Connected   bool     `json:"connected,omitempty"`
}

// GeneratorConfig controls dataset generation.
type GeneratorConfig struct {
	Seed       int64      // 0 = fixed default seed
	Mode       model.Mode // default overview
	FeatureMix []string   // node features, cycled at random (default: person, org, place)
	Relations  []string   // connection features (default: mentions)
	Properties bool       // attach "score" (float) and "kind" (string) properties
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:       42,
		Mode:       model.ModeOverview,
		FeatureMix: []string{"person", "org", "place"},
		Relations:  []string{"mentions"},
		Properties: true,
	}
}

// Generator builds fixtures and datasets.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with cfg, filling defaults.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.Mode == "" {
		cfg.Mode = def.Mode
	}
	if len(cfg.FeatureMix) == 0 {
		cfg.FeatureMix = def.FeatureMix
	}
	if len(cfg.Relations) == 0 {
		cfg.Relations = def.Relations
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with DefaultConfig.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Chain: n0 - n1 - ... - n{size-1}.
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := range size {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("chain of %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   true,
	}
}

// Star is a hub linked to every spoke.
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{0, i}
	}
	return GraphFixture{
		Description: fmt.Sprintf("star with %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   true,
	}
}

// Cycle closes a chain back onto its first node.
func (g *Generator) Cycle(size int) GraphFixture {
	gf := g.Chain(size)
	if size > 2 {
		gf.Edges = append(gf.Edges, [2]int{size - 1, 0})
	}
	gf.Description = fmt.Sprintf("cycle of %d nodes", size)
	return gf
}

// Tree has the given depth with breadth children per inner node.
func (g *Generator) Tree(depth, breadth int) GraphFixture {
	depth = max(depth, 1)
	breadth = max(breadth, 1)
	nodes := []string{"root"}
	var edges [][2]int
	level := []int{0}
	for d := 1; d <= depth; d++ {
		var next []int
		for _, parent := range level {
			for b := range breadth {
				idx := len(nodes)
				nodes = append(nodes, fmt.Sprintf("d%d_%d_%d", d, parent, b))
				edges = append(edges, [2]int{parent, idx})
				next = append(next, idx)
			}
		}
		level = next
	}
	return GraphFixture{
		Description: fmt.Sprintf("tree depth=%d breadth=%d (%d nodes)", depth, breadth, len(nodes)),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   true,
	}
}

// Disconnected creates `components` chains of componentSize nodes each.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	var nodes []string
	var edges [][2]int
	for c := range components {
		for i := range componentSize {
			idx := len(nodes)
			nodes = append(nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				edges = append(edges, [2]int{idx - 1, idx})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d chains of %d nodes", components, componentSize),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   components <= 1,
	}
}

// Complete links every pair.
func (g *Generator) Complete(size int) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := range size {
		nodes[i] = fmt.Sprintf("n%d", i)
		for j := i + 1; j < size; j++ {
			edges = append(edges, [2]int{i, j})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("complete graph on %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   true,
	}
}

// Random links each pair with probability density.
func (g *Generator) Random(size int, density float64) GraphFixture {
	density = min(max(density, 0), 1)
	nodes := make([]string, size)
	var edges [][2]int
	for i := range size {
		nodes[i] = fmt.Sprintf("n%d", i)
	}
	for i := range size {
		for j := i + 1; j < size; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("random graph on %d nodes, density %.2f (%d edges)", size, density, len(edges)),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// Bipartite links every left node to every right node.
func (g *Generator) Bipartite(left, right int) GraphFixture {
	nodes := make([]string, 0, left+right)
	var edges [][2]int
	for i := range left {
		nodes = append(nodes, fmt.Sprintf("L%d", i))
	}
	for i := range right {
		nodes = append(nodes, fmt.Sprintf("R%d", i))
	}
	for i := range left {
		for j := range right {
			edges = append(edges, [2]int{i, left + j})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("bipartite %dx%d", left, right),
		Nodes:       nodes,
		Edges:       edges,
		Connected:   left > 0 && right > 0,
	}
}

// ToDataset converts gf into a dataset with generated features, properties
// and one connection per edge.
func (g *Generator) ToDataset(gf GraphFixture) model.Dataset {
	ds := model.Dataset{
		Mode:  g.cfg.Mode,
		Query: gf.Description,
		Nodes: make([]model.NodeRecord, len(gf.Nodes)),
		Links: make([]model.LinkRecord, 0, len(gf.Edges)),
	}
	for i, id := range gf.Nodes {
		r := model.NodeRecord{
			ID:      id,
			Label:   "Node " + id,
			Feature: g.cfg.FeatureMix[g.rng.Intn(len(g.cfg.FeatureMix))],
			Entries: []string{fmt.Sprintf("doc-%d", i%7)},
		}
		if g.cfg.Properties {
			r.Properties = map[string]any{
				"score": float64(g.rng.Intn(1000)) / 10,
				"kind":  []string{"alpha", "beta", "gamma"}[g.rng.Intn(3)],
			}
		}
		ds.Nodes[i] = r
	}
	for _, e := range gf.Edges {
		ds.Links = append(ds.Links, model.LinkRecord{
			Source: gf.Nodes[e[0]],
			Target: gf.Nodes[e[1]],
			Connections: []model.Connection{{
				Label:   gf.Nodes[e[0]] + "->" + gf.Nodes[e[1]],
				Feature: g.cfg.Relations[g.rng.Intn(len(g.cfg.Relations))],
				Weight:  float64(1 + g.rng.Intn(9)),
			}},
		})
	}
	return ds
}

// Quick helpers using the default generator.

func QuickChain(size int) model.Dataset {
	g := NewDefault()
	return g.ToDataset(g.Chain(size))
}

func QuickStar(spokes int) model.Dataset {
	g := NewDefault()
	return g.ToDataset(g.Star(spokes))
}

func QuickDisconnected(components, size int) model.Dataset {
	g := NewDefault()
	return g.ToDataset(g.Disconnected(components, size))
}

func QuickRandom(size int, density float64) model.Dataset {
	g := NewDefault()
	return g.ToDataset(g.Random(size, density))
}

// Dataset builds a small dataset from "a-b" edge strings plus isolated ids.
// Nodes appear in order of first mention.
func Dataset(edges []string, isolated ...string) model.Dataset {
	var ds model.Dataset
	seen := make(map[string]bool)
	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		ds.Nodes = append(ds.Nodes, model.NodeRecord{ID: id, Label: id, Feature: "term"})
	}
	for _, e := range edges {
		var a, b string
		for i := 0; i < len(e); i++ {
			if e[i] == '-' {
				a, b = e[:i], e[i+1:]
				break
			}
		}
		add(a)
		add(b)
		ds.Links = append(ds.Links, model.LinkRecord{
			Source:      a,
			Target:      b,
			Connections: []model.Connection{{Label: e, Feature: "co-occurs", Count: 1}},
		})
	}
	for _, id := range isolated {
		add(id)
	}
	return ds
}
