package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/colors"
	"github.com/vanderheijden86/graphlens/pkg/expand"
	"github.com/vanderheijden86/graphlens/pkg/graph"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

const ov = model.ModeOverview

type countingPhysics struct{ starts, stops int }

func (p *countingPhysics) Start(layout.Cooldown, []string) { p.starts++ }
func (p *countingPhysics) Stop()                           { p.stops++ }

func newEngine(t *testing.T, service expand.Expander, ds model.Dataset) (*Engine, *countingPhysics) {
	t.Helper()
	p := &countingPhysics{}
	e, err := New(service, p, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Load(ov, ds); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		for _, m := range model.Modes() {
			e.Layout(m).StopForce()
		}
	})
	return e, p
}

func colorsOf(t *testing.T, e *Engine) map[string]string {
	t.Helper()
	snap, err := e.Snapshot(ov)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]string{}
	for _, n := range snap.Nodes {
		out[n.ID] = n.Color
	}
	return out
}

func mixed() model.Dataset {
	ds := testutil.Dataset([]string{"a-b", "b-c"}, "d")
	ds.Nodes[1].Feature = "person"
	return ds
}

func TestLoadColoursAndSettles(t *testing.T) {
	e, p := newEngine(t, nil, mixed())
	got := colorsOf(t, e)
	if got["a"] != colors.Categorical[0].Light || got["b"] != colors.Categorical[1].Light {
		t.Errorf("colours = %v", got)
	}
	if p.starts != 1 || e.Layout(ov).State() != layout.Simulating {
		t.Errorf("load did not start the simulation (starts %d)", p.starts)
	}
	testutil.AssertIDs(t, e.Palette(ov).Nodes.Keys, []string{"term", "person"})
}

func TestSchemeAndThemeRecolour(t *testing.T) {
	e, _ := newEngine(t, nil, mixed())
	if err := e.SetTheme(colors.ThemeDark); err != nil {
		t.Fatal(err)
	}
	if got := colorsOf(t, e); got["a"] != colors.Categorical[0].Dark {
		t.Errorf("dark colour = %s", got["a"])
	}

	sc := colors.Scheme{Name: "degree", Target: colors.TargetNodes, Source: colors.SourceDegree}
	if err := e.SetNodeScheme(sc); err != nil {
		t.Fatal(err)
	}
	ramp := colors.Ramp(colors.ThemeDark)
	got := colorsOf(t, e)
	if got["d"] != ramp[0] || got["b"] != ramp[colors.RampSize-1] {
		t.Errorf("degree colours = %v", got)
	}

	if err := e.SetNodeScheme(colors.DefaultScheme(colors.TargetLinks)); err == nil {
		t.Error("link scheme accepted for nodes")
	}
}

func TestNodeClickAndBackground(t *testing.T) {
	e, _ := newEngine(t, nil, mixed())
	on, err := e.OnNodeClick("b")
	if err != nil || !on {
		t.Fatalf("click = %v, %v", on, err)
	}
	if _, err := e.OnNodeHover("b"); err != nil {
		t.Fatal(err)
	}
	if err := e.OnBackgroundClick(); err != nil {
		t.Fatal(err)
	}
	_ = e.Store().Read(ov, func(v *graph.View) {
		if len(v.SelectedNodes()) != 0 {
			t.Errorf("selection = %v", v.SelectedNodes())
		}
	})
	if id, _ := e.Hover(); id != "" {
		t.Errorf("hover = %q", id)
	}
}

func TestNodeHover(t *testing.T) {
	e, _ := newEngine(t, nil, mixed())
	set, err := e.OnNodeHover("b")
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 2 {
		t.Errorf("neighbours = %v", set)
	}
	if !e.Highlighted("a") || !e.Highlighted("b") || e.Highlighted("d") {
		t.Error("highlight set wrong")
	}

	var ve *graph.ValidationError
	if _, err := e.OnNodeHover("zz"); !errors.As(err, &ve) {
		t.Errorf("unknown hover: err = %v", err)
	}
	if id, _ := e.Hover(); id != "b" {
		t.Error("failed hover replaced the current one")
	}
	_, _ = e.OnNodeHover("")
	if e.Highlighted("b") {
		t.Error("hover not cleared")
	}
}

func TestRemoveSelectionDropsHover(t *testing.T) {
	e, p := newEngine(t, nil, mixed())
	_, _ = e.OnNodeHover("c")
	_ = e.SetSelection([]string{"c"})
	n, err := e.RemoveSelection()
	if err != nil || n != 1 {
		t.Fatalf("removed %d, %v", n, err)
	}
	if id, _ := e.Hover(); id != "" {
		t.Errorf("hover on removed node: %q", id)
	}
	if p.starts != 2 {
		t.Errorf("structural change did not re-settle (starts %d)", p.starts)
	}
}

func TestFilterDoesNotResettle(t *testing.T) {
	e, p := newEngine(t, nil, mixed())
	if err := e.FilterNodesByDegree(1, 2); err != nil {
		t.Fatal(err)
	}
	if p.starts != 1 {
		t.Errorf("filter restarted the simulation")
	}
	// filtering keeps the assignment
	if got := colorsOf(t, e); got["d"] != colors.Categorical[0].Light {
		t.Errorf("hidden node lost its colour: %v", got)
	}
}

func TestExpandRecolours(t *testing.T) {
	service := expand.ExpanderFunc(func(context.Context, []string, model.ExpandMode) (model.Expansion, error) {
		return model.Expansion{
			Nodes: []model.NodeRecord{{ID: "x", Feature: "place"}},
			Links: []model.LinkRecord{{Source: "a", Target: "x"}},
		}, nil
	})
	e, p := newEngine(t, service, mixed())

	res, err := e.Expand(context.Background(), []string{"a"}, model.ExpandOr)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.AddedNodes != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if got := colorsOf(t, e); got["x"] != colors.Categorical[2].Light {
		t.Errorf("new node colour = %q", got["x"])
	}
	if p.starts != 2 {
		t.Errorf("merge did not re-settle (starts %d)", p.starts)
	}
}

func TestExpandWithoutService(t *testing.T) {
	e, _ := newEngine(t, nil, mixed())
	res := <-e.ExpandAsync(context.Background(), []string{"a"}, model.ExpandOr)
	var nf *expand.NetworkFailure
	if !errors.As(res.Err, &nf) {
		t.Errorf("err = %v", res.Err)
	}
}

func TestTrimThroughFacade(t *testing.T) {
	e, _ := newEngine(t, nil, mixed())
	_ = e.FilterNodesByDegree(1, 2)
	stats, err := e.TrimNetwork()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Nodes != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := colorsOf(t, e)["d"]; ok {
		t.Error("trimmed node still rendered")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Theme = colors.Theme(9)
	if _, err := New(nil, nil, opts); err == nil {
		t.Error("invalid theme accepted")
	}
	opts = DefaultOptions()
	opts.LinkScheme.Source = "bogus"
	if _, err := New(nil, nil, opts); err == nil {
		t.Error("invalid link scheme accepted")
	}
}
