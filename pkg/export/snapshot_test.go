package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

func sampleSnapshot() graph.RenderSnapshot {
	return graph.RenderSnapshot{
		Mode:   model.ModeOverview,
		ViewID: "v1",
		Meta:   model.Meta{MaxDegree: 2, Query: "graphs & colours"},
		Nodes: []graph.RenderNode{
			{ID: "a", Label: "Alpha", Degree: 1, Component: 0, Visible: true, Color: "#1f77b4"},
			{ID: "b", Label: "Beta <b>", Degree: 2, Component: 0, Visible: true, Selected: true, Color: "#ff7f0e"},
			{ID: "c", Degree: 1, Component: 0, Visible: true, Color: "#2ca02c"},
			{ID: "d", Label: "Hidden", Component: 1, Visible: false, Color: "#d62728"},
		},
		Links: []graph.RenderLink{
			{Source: "a", Target: "b", Visible: true, Color: "#999999"},
			{Source: "b", Target: "c", Visible: true, Color: "not-a-colour"},
		},
	}
}

func TestSaveSnapshot_SVGAndPNG(t *testing.T) {
	tmp := t.TempDir()
	cases := []struct {
		name string
		file string
	}{
		{"svg", "graph.svg"},
		{"png", "graph.png"},
		{"nested", filepath.Join("out", "deep", "graph.svg")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(tmp, tc.file)
			err := SaveSnapshot(sampleSnapshot(), SnapshotOptions{
				Path:   out,
				Legend: []colors.LegendEntry{{Label: "term", Color: "#1f77b4"}},
			})
			if err != nil {
				t.Fatalf("SaveSnapshot error: %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("output file is empty")
			}
		})
	}
}

func TestSaveSnapshot_NoExtensionDefaultsToSVG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "graph")
	if err := SaveSnapshot(sampleSnapshot(), SnapshotOptions{Path: out}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out + ".svg"); err != nil {
		t.Errorf("expected %s.svg: %v", out, err)
	}
}

func TestSaveSnapshot_Errors(t *testing.T) {
	tmp := t.TempDir()
	tests := []struct {
		name string
		rs   graph.RenderSnapshot
		opts SnapshotOptions
	}{
		{"no path", sampleSnapshot(), SnapshotOptions{}},
		{"bad format", sampleSnapshot(), SnapshotOptions{Path: filepath.Join(tmp, "g.txt"), Format: "txt"}},
		{"empty", graph.RenderSnapshot{}, SnapshotOptions{Path: filepath.Join(tmp, "g.svg")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := SaveSnapshot(tt.rs, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWriteSVG_Content(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSVG(&buf, sampleSnapshot(), SnapshotOptions{
		Title:  "papers",
		Legend: []colors.LegendEntry{{Label: "person", Color: "#ff7f0e"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{
		"<svg",
		"papers",
		"mode: overview  view: v1",
		"nodes: 3  links: 2  components: 1",
		"Alpha",
		"#1f77b4",
		"Legend",
		"person",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	if strings.Contains(out, "Hidden") {
		t.Error("hidden node rendered")
	}
	if strings.Contains(out, "<b>") {
		t.Error("label not escaped")
	}
	// unparseable link colour falls back to the theme link colour
	if !strings.Contains(out, css(themePalette(colors.ThemeLight).Link)) {
		t.Error("fallback link colour missing")
	}
}

func TestWriteSVG_IncludeHidden(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sampleSnapshot(), SnapshotOptions{IncludeHidden: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Hidden") {
		t.Error("hidden node not drawn")
	}
	if !strings.Contains(buf.String(), "fill-opacity:0.3") {
		t.Error("hidden node not faded")
	}
}

func TestBuildLayout_RingsPerComponent(t *testing.T) {
	rs := sampleSnapshot()
	rs.Nodes[3].Visible = true
	sl := buildLayout(rs, SnapshotOptions{})
	if len(sl.Nodes) != 4 {
		t.Fatalf("nodes = %d", len(sl.Nodes))
	}
	pos := positions(sl)
	// the singleton component sits in its own cell, to the right of the ring
	if pos["d"].X <= pos["b"].X {
		t.Errorf("component cells overlap: d=%v b=%v", pos["d"], pos["b"])
	}
	for _, n := range sl.Nodes {
		if n.Y < headerHeight {
			t.Errorf("node %s drawn over the header (y=%g)", n.ID, n.Y)
		}
	}
	if sl.Width < 640 || sl.Height < 480 {
		t.Errorf("canvas %dx%d below minimum", sl.Width, sl.Height)
	}
}

func TestBuildLayout_FromStore(t *testing.T) {
	s := graph.NewStore(graph.DefaultOptions())
	if err := s.ReplaceView(model.ModeOverview, testutil.QuickDisconnected(5, 4)); err != nil {
		t.Fatal(err)
	}
	rs, err := s.Snapshot(model.ModeOverview)
	if err != nil {
		t.Fatal(err)
	}
	sl := buildLayout(rs, SnapshotOptions{})
	if len(sl.Nodes) != 20 || len(sl.Links) != 15 {
		t.Fatalf("placed %d nodes, %d links", len(sl.Nodes), len(sl.Links))
	}
	seen := make(map[[2]int]string)
	for _, n := range sl.Nodes {
		p := [2]int{int(n.X), int(n.Y)}
		if other, ok := seen[p]; ok {
			t.Errorf("%s and %s share position %v", n.ID, other, p)
		}
		seen[p] = n.ID
	}
	if !strings.Contains(sl.Lines[1], "components: 5") {
		t.Errorf("summary = %q", sl.Lines[1])
	}
}

func TestBuildLayout_UsesSimulatedPositions(t *testing.T) {
	rs := sampleSnapshot()
	rs.Nodes[0].X, rs.Nodes[0].Y = -100, 50
	rs.Nodes[1].X, rs.Nodes[1].Y = 100, 50
	rs.Nodes[2].X, rs.Nodes[2].Y = 0, 250
	pos := positions(buildLayout(rs, SnapshotOptions{}))

	if got := pos["b"].X - pos["a"].X; got != 200 {
		t.Errorf("x distance = %g, want 200", got)
	}
	if got := pos["c"].Y - pos["a"].Y; got != 200 {
		t.Errorf("y distance = %g, want 200", got)
	}
	if pos["a"].X != padding {
		t.Errorf("leftmost node x = %g, want %g", pos["a"].X, padding)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"a longer label", 8, "a lon..."},
		{"abc", 2, "ab"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
