package graph

import (
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// MaxNeighborDepth is the deepest hop count a neighbour query accepts.
const MaxNeighborDepth = 3

// NeighborsAtDepth expands ids breadth-first over neighbour sets and returns
// one slice per hop (index 0 is hop 1). A node appears in at most one hop and
// never when it is a seed. Unknown seeds are ignored. Within a hop, ids follow
// the view's insertion order.
func (s *Store) NeighborsAtDepth(mode model.Mode, ids []string, depth int) ([][]string, error) {
	defer metrics.Timer(metrics.NeighborQuery)()

	if depth < 1 || depth > MaxNeighborDepth {
		return nil, validationf("neighborsAtDepth", "depth", "must be between 1 and %d, got %d", MaxNeighborDepth, depth)
	}
	var hops [][]string
	err := s.Read(mode, func(v *View) {
		hops = v.bfs(ids, depth)
	})
	return hops, err
}

// bfs visits only the frontier of each hop, so the cost is proportional to
// the edges leaving it rather than to the view size.
func (v *View) bfs(seeds []string, depth int) [][]string {
	visited := make(map[string]struct{}, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, ok := v.nodeIndex[id]; !ok {
			continue
		}
		if _, dup := visited[id]; dup {
			continue
		}
		visited[id] = struct{}{}
		frontier = append(frontier, id)
	}

	hops := make([][]string, 0, depth)
	for d := 0; d < depth; d++ {
		var next []string
		for _, id := range frontier {
			n := v.nodes[v.nodeIndex[id]]
			for nid := range n.Neighbours {
				if _, ok := visited[nid]; ok {
					continue
				}
				visited[nid] = struct{}{}
				next = append(next, nid)
			}
		}
		v.sortIDsByIndex(next)
		hops = append(hops, next)
		frontier = next
	}
	return hops
}
