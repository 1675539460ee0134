//go:build ignore

// generate_testdata.go creates synthetic graph datasets for benchmarking.
// Usage: go run scripts/generate_testdata.go [-out dir]
//
// Creates, per size, a JSON file holding both views and a SQLite file:
//
//	testdata/benchmark/small.json   small.db   (200 nodes)
//	testdata/benchmark/medium.json  medium.db  (2000 nodes)
//	testdata/benchmark/large.json   large.db   (10000 nodes)
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/graphlens/internal/datasource"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

type datasetSpec struct {
	name       string
	size       int
	components int
	degree     float64 // mean degree inside a component
}

var datasets = []datasetSpec{
	{"small", 200, 4, 3},
	{"medium", 2000, 12, 4},
	{"large", 10000, 40, 5},
}

var (
	features  = []string{"term", "person", "place", "organisation", "event"}
	relations = []string{"cites", "mentions", "located_in", "member_of"}
)

func main() {
	out := flag.String("out", "testdata/benchmark", "output directory")
	flag.Parse()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, set := range datasets {
		fmt.Printf("Generating %s dataset (%d nodes)...\n", set.name, set.size)
		rng := rand.New(rand.NewSource(int64(set.size)))

		overview := generate(rng, set, model.ModeOverview)
		detail := generate(rng, set, model.ModeDetail)

		jsonPath := filepath.Join(*out, set.name+".json")
		doc := map[string]any{
			"views": map[model.Mode]model.Dataset{
				model.ModeOverview: overview,
				model.ModeDetail:   detail,
			},
		}
		data, err := json.Marshal(doc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", jsonPath, err)
			os.Exit(1)
		}
		if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", jsonPath, err)
			os.Exit(1)
		}

		dbPath := filepath.Join(*out, set.name+".db")
		_ = os.Remove(dbPath)
		if err := datasource.SaveSQLite(dbPath, overview, detail); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", dbPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes) and %s, %d links\n", jsonPath, len(data), dbPath, len(overview.Links))
	}

	fmt.Println("\nDone! Test datasets created in", *out)
}

// generate builds set.components clusters of roughly equal size, wired as
// random graphs that always contain a spanning path so each cluster stays
// connected.
func generate(rng *rand.Rand, set datasetSpec, mode model.Mode) model.Dataset {
	ds := model.Dataset{
		Mode:             mode,
		Query:            fmt.Sprintf("synthetic %s %s", set.name, mode),
		AnchorProperties: []string{"score"},
	}

	per := set.size / set.components
	for c := 0; c < set.components; c++ {
		ids := make([]string, per)
		for i := range ids {
			id := fmt.Sprintf("%s-%d-%d", mode, c, i)
			ids[i] = id
			ds.Nodes = append(ds.Nodes, model.NodeRecord{
				ID:      id,
				Label:   fmt.Sprintf("node %d.%d", c, i),
				Feature: features[rng.Intn(len(features))],
				Entries: []string{fmt.Sprintf("entry-%d", rng.Intn(1000))},
				Properties: map[string]any{
					"score": float64(rng.Intn(100)),
					"year":  float64(1990 + rng.Intn(35)),
				},
			})
		}

		seen := make(map[model.LinkKey]bool)
		add := func(a, b string) {
			k := model.NewLinkKey(a, b)
			if a == b || seen[k] {
				return
			}
			seen[k] = true
			ds.Links = append(ds.Links, model.LinkRecord{
				Source: a,
				Target: b,
				Connections: []model.Connection{{
					Label:   relations[rng.Intn(len(relations))],
					Feature: "relation",
					Weight:  float64(1 + rng.Intn(5)),
					Count:   1 + rng.Intn(3),
				}},
			})
		}
		for i := 1; i < per; i++ {
			add(ids[i-1], ids[i])
		}
		extra := int(float64(per)*set.degree/2) - (per - 1)
		for i := 0; i < extra; i++ {
			add(ids[rng.Intn(per)], ids[rng.Intn(per)])
		}
	}
	return ds
}
