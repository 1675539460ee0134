package datasource

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/expand"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

var (
	_ expand.Expander = (*MemoryExpander)(nil)
	_ expand.Expander = (*SQLiteExpander)(nil)
)

// maxSeedQueries bounds the concurrent per-seed lookups of SQLiteExpander.
const maxSeedQueries = 4

// neighbourhood collects the candidates around seeds from the links touching
// each seed. With ExpandOr a candidate needs one seed, with ExpandAnd every
// distinct seed. The returned links join seeds to qualifying candidates or
// to each other.
func neighbourhood(seeds []string, perSeed [][]model.LinkRecord, mode model.ExpandMode) ([]string, []model.LinkRecord) {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		seedSet[id] = struct{}{}
	}

	var order []string
	reached := make(map[string]map[string]struct{})
	for i, seed := range seeds {
		for _, l := range perSeed[i] {
			other := l.Key().Other(seed)
			if _, isSeed := seedSet[other]; isSeed {
				continue
			}
			set, ok := reached[other]
			if !ok {
				set = make(map[string]struct{})
				reached[other] = set
				order = append(order, other)
			}
			set[seed] = struct{}{}
		}
	}

	qualified := make(map[string]struct{}, len(order))
	var candidates []string
	for _, id := range order {
		if mode == model.ExpandAnd && len(reached[id]) < len(seedSet) {
			continue
		}
		qualified[id] = struct{}{}
		candidates = append(candidates, id)
	}

	var links []model.LinkRecord
	seen := make(map[model.LinkKey]struct{})
	for i, seed := range seeds {
		for _, l := range perSeed[i] {
			key := l.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			other := key.Other(seed)
			_, isSeed := seedSet[other]
			_, ok := qualified[other]
			if !isSeed && !ok {
				continue
			}
			seen[key] = struct{}{}
			links = append(links, l)
		}
	}
	return candidates, links
}

func checkRequest(seeds []string, mode model.ExpandMode) error {
	if len(seeds) == 0 {
		return fmt.Errorf("expand: no seeds")
	}
	if !mode.IsValid() {
		return fmt.Errorf("expand: unknown mode %q", mode)
	}
	return nil
}

// MemoryExpander answers expansion requests from an in-memory dataset. It is
// safe for concurrent use; Reset swaps the dataset.
type MemoryExpander struct {
	mu    sync.RWMutex
	nodes map[string]model.NodeRecord
	adj   map[string][]model.LinkRecord
}

// NewMemoryExpander indexes ds.
func NewMemoryExpander(ds model.Dataset) *MemoryExpander {
	e := &MemoryExpander{}
	e.Reset(ds)
	return e
}

// Reset replaces the dataset the expander answers from.
func (e *MemoryExpander) Reset(ds model.Dataset) {
	nodes := make(map[string]model.NodeRecord, len(ds.Nodes))
	for _, n := range ds.Nodes {
		nodes[n.ID] = n
	}
	adj := make(map[string][]model.LinkRecord)
	for _, l := range ds.Links {
		adj[l.Source] = append(adj[l.Source], l)
		if l.Target != l.Source {
			adj[l.Target] = append(adj[l.Target], l)
		}
	}

	e.mu.Lock()
	e.nodes, e.adj = nodes, adj
	e.mu.Unlock()
}

// Expand implements expand.Expander.
func (e *MemoryExpander) Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error) {
	if err := checkRequest(seeds, mode); err != nil {
		return model.Expansion{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Expansion{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	perSeed := make([][]model.LinkRecord, len(seeds))
	for i, id := range seeds {
		perSeed[i] = e.adj[id]
	}
	candidates, links := neighbourhood(seeds, perSeed, mode)

	exp := model.Expansion{Links: links}
	for _, id := range candidates {
		n, ok := e.nodes[id]
		if !ok {
			n = model.NodeRecord{ID: id, Label: id}
		}
		exp.Nodes = append(exp.Nodes, n)
	}
	return exp, nil
}

// SQLiteExpander answers expansion requests from one view of a dataset
// database, looking up each seed's links concurrently.
type SQLiteExpander struct {
	reader *SQLiteReader
	mode   model.Mode
}

// NewSQLiteExpander opens the database at path for expansion of mode.
func NewSQLiteExpander(path string, mode model.Mode) (*SQLiteExpander, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("unknown view mode %q", mode)
	}
	r, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteExpander{reader: r, mode: mode}, nil
}

// Close releases the database.
func (e *SQLiteExpander) Close() error {
	return e.reader.Close()
}

// Expand implements expand.Expander.
func (e *SQLiteExpander) Expand(ctx context.Context, seeds []string, mode model.ExpandMode) (model.Expansion, error) {
	if err := checkRequest(seeds, mode); err != nil {
		return model.Expansion{}, err
	}

	perSeed := make([][]model.LinkRecord, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxSeedQueries)
	for i, id := range seeds {
		g.Go(func() error {
			links, err := e.reader.LinksOf(gctx, e.mode, id)
			if err != nil {
				return fmt.Errorf("links of %s: %w", id, err)
			}
			perSeed[i] = links
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Expansion{}, err
	}

	candidates, links := neighbourhood(seeds, perSeed, mode)
	nodes, err := e.reader.NodesByID(ctx, e.mode, candidates)
	if err != nil {
		return model.Expansion{}, err
	}
	if len(nodes) < len(candidates) {
		have := make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			have[n.ID] = struct{}{}
		}
		for _, id := range candidates {
			if _, ok := have[id]; !ok {
				nodes = append(nodes, model.NodeRecord{ID: id, Label: id})
			}
		}
	}
	debug.Log("datasource: %s expansion of %v from %s: %d nodes, %d links",
		mode, seeds, e.reader.Path(), len(nodes), len(links))
	return model.Expansion{Nodes: nodes, Links: links}, nil
}
